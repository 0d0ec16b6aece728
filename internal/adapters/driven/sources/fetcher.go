// Package sources implements driven.SourceClient for the supported source
// protocol families.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultUserAgent is sent with every source request
	DefaultUserAgent = "Mozilla/5.0 (compatible; sourceswitch/1.0)"

	// DefaultRequestTimeout bounds a single shared request
	DefaultRequestTimeout = 30 * time.Second

	defaultMaxBodyBytes   = 8 << 20
	defaultChapterRetries = 3
	defaultRetryInterval  = 250 * time.Millisecond
)

// SourceError describes a failed request to a content source.
// It wraps domain.ErrTimeout, domain.ErrNetwork or domain.ErrParse.
type SourceError struct {
	SourceID   string
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: %s %s: HTTP status %d: %v", e.SourceID, e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source %s: %s %s: %v", e.SourceID, e.Op, e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// FetcherConfig configures a Fetcher
type FetcherConfig struct {
	Client         *http.Client
	UserAgent      string
	MaxBodyBytes   int64
	ChapterRetries uint          // Attempts for chapter list fetches
	RetryInterval  time.Duration // First backoff interval
	RequestTimeout time.Duration // Upper bound of a shared request
	Logger         *slog.Logger
}

// Fetcher performs GET requests for source clients. Identical concurrent
// GETs share one request.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxBodyBytes   int64
	retries        uint
	retryInterval  time.Duration
	requestTimeout time.Duration
	group          singleflight.Group
	logger         *slog.Logger
}

// NewFetcher creates a Fetcher
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	retries := cfg.ChapterRetries
	if retries == 0 {
		retries = defaultChapterRetries
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client:         client,
		userAgent:      userAgent,
		maxBodyBytes:   maxBody,
		retries:        retries,
		retryInterval:  interval,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Get fetches url once. The shared request outlives any single caller and
// is bounded by the request timeout; each caller still stops waiting when
// its own ctx is done.
func (f *Fetcher) Get(ctx context.Context, sourceID, op, url string) ([]byte, error) {
	ch := f.group.DoChan(sourceID+" "+url, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.requestTimeout)
		defer cancel()
		return f.get(sharedCtx, sourceID, op, url)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, &SourceError{SourceID: sourceID, Op: op, URL: url, Err: classify(ctx.Err())}
	}
}

// GetWithRetry fetches url with exponential backoff. Client errors (4xx)
// are not retried.
func (f *Fetcher) GetWithRetry(ctx context.Context, sourceID, op, url string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval

	attempt := 0
	return backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		body, err := f.Get(ctx, sourceID, op, url)
		if err == nil {
			return body, nil
		}
		var srcErr *SourceError
		if errors.As(err, &srcErr) && srcErr.StatusCode >= 400 && srcErr.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		if errors.Is(err, domain.ErrParse) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.retries),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.logger.Debug("retrying source request",
				"source_id", sourceID,
				"op", op,
				"attempt", attempt,
				"next", next,
				"error", err,
			)
		}),
	)
}

func (f *Fetcher) get(ctx context.Context, sourceID, op, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SourceError{SourceID: sourceID, Op: op, URL: url, Err: fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &SourceError{SourceID: sourceID, Op: op, URL: url, Err: classify(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &SourceError{SourceID: sourceID, Op: op, URL: url, StatusCode: resp.StatusCode, Err: domain.ErrNetwork}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, &SourceError{SourceID: sourceID, Op: op, URL: url, Err: classify(err)}
	}
	return body, nil
}

func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
}
