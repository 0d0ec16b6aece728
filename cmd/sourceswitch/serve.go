package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	httpadapter "github.com/castn/sourceswitch/internal/adapters/driving/http"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  "Start an HTTP server exposing the source registry, aggregated search and change-source operations.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := httpadapter.DefaultConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	if servePort > 0 {
		serverCfg.Port = servePort
	}
	serverCfg.Version = version
	serverCfg.AllowedOrigins = cfg.AllowedOrigins
	serverCfg.Logger = logger

	var redisPinger httpadapter.Pinger
	if a.redis != nil {
		redisPinger = a.redis
	}

	server := httpadapter.NewServer(
		serverCfg,
		a.registry,
		a.aggregator,
		a.coordinator,
		a.books,
		a.metrics,
		a.store,
		redisPinger,
	)

	log.Printf("sourceswitch %s listening on %s:%d (db=%s)", version, serverCfg.Host, serverCfg.Port, cfg.DatabaseDriver)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
