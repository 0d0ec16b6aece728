package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/castn/sourceswitch/internal/adapters/driven/memory"
	"github.com/castn/sourceswitch/internal/adapters/driven/postgres"
	redisadapter "github.com/castn/sourceswitch/internal/adapters/driven/redis"
	"github.com/castn/sourceswitch/internal/adapters/driven/sources"
	"github.com/castn/sourceswitch/internal/adapters/driven/sqlite"
	"github.com/castn/sourceswitch/internal/config"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/castn/sourceswitch/internal/core/services"
	"github.com/castn/sourceswitch/internal/metrics"
)

// app holds the wired services shared by every command
type app struct {
	metrics     *metrics.Metrics
	books       driven.BookStore
	store       driven.SourceStore
	redis       *redisadapter.PreferenceStore // nil without REDIS_URL
	registry    *services.SourceRegistry
	aggregator  *services.SearchAggregator
	coordinator *services.SwitchCoordinator

	closers []func() error
}

// newApp connects the configured stores and wires the services over them
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{metrics: metrics.New()}

	if err := a.openStores(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	var preferences driven.PreferenceStore = memory.NewPreferenceStore()
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		a.redis = redisadapter.NewPreferenceStore(client)
		if err := a.redis.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		preferences = a.redis
		log.Println("Using Redis preference store")
	} else {
		log.Println("Using in-memory preference store")
	}

	weights, err := cfg.WeightModel()
	if err != nil {
		a.Close()
		return nil, err
	}

	clients := sources.NewFactory(sources.NewFetcher(sources.FetcherConfig{
		UserAgent:      cfg.UserAgent,
		RequestTimeout: max(cfg.ProbeTimeout, cfg.ChapterFetchTimeout),
		Logger:         logger,
	}))

	a.registry = services.NewSourceRegistry(services.SourceRegistryConfig{
		Store:   a.store,
		Metrics: a.metrics,
		Logger:  logger,
	})
	a.aggregator = services.NewSearchAggregator(services.SearchAggregatorConfig{
		Registry:       a.registry,
		Clients:        clients,
		Weights:        weights,
		ProbeTimeout:   cfg.ProbeTimeout,
		SearchDeadline: cfg.SearchDeadline,
		MaxProbes:      cfg.MaxConcurrentProbes,
		Metrics:        a.metrics,
		Logger:         logger,
	})
	a.coordinator = services.NewSwitchCoordinator(services.SwitchCoordinatorConfig{
		Registry:            a.registry,
		Aggregator:          a.aggregator,
		Preferences:         services.NewPreferenceCache(preferences, a.registry, weights, logger),
		Clients:             clients,
		Books:               a.books,
		Weights:             weights,
		SearchDeadline:      cfg.SearchDeadline,
		ChapterFetchTimeout: cfg.ChapterFetchTimeout,
		Metrics:             a.metrics,
		Logger:              logger,
	})
	return a, nil
}

func (a *app) openStores(ctx context.Context, cfg *config.Config) error {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		log.Println("Connecting to PostgreSQL...")
		dbCfg := postgres.DefaultConfig(cfg.DatabaseURL)
		dbCfg.MaxOpenConns = cfg.DBMaxOpenConns
		dbCfg.MaxIdleConns = cfg.DBMaxIdleConns
		db, err := postgres.Connect(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return err
		}
		a.store = postgres.NewSourceStore(db)
		a.books = postgres.NewBookStore(db)
		log.Println("PostgreSQL connected and schema initialized")

	case config.DriverSQLite:
		log.Printf("Opening SQLite database %s...", cfg.DatabaseURL)
		db, err := sqlite.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.store = sqlite.NewSourceStore(db)
		a.books = sqlite.NewBookStore(db)
		log.Println("SQLite database ready")

	default:
		return fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	return nil
}

// Close releases every connection in reverse order of opening
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
