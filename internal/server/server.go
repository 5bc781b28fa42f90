// Package server is the HTTP front end: it speaks the S3 dialect to
// clients and composes the erasure codec, the fan-out executor, the
// coordination locks, and the HEAD cache into per-verb request handling.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/racs-io/racs/internal/cache"
	"github.com/racs-io/racs/internal/config"
	"github.com/racs-io/racs/internal/coordination"
	"github.com/racs-io/racs/internal/erasure"
	"github.com/racs-io/racs/internal/fanout"
	"github.com/racs-io/racs/internal/metrics"
	"github.com/racs-io/racs/internal/repository"
	"github.com/racs-io/racs/internal/repository/factory"
)

// Server owns the repository set and serves the S3 dialect.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	manager *repository.Manager
	codec   *erasure.Codec
	coord   *coordination.Client
	heads   *cache.HeadCache
	stats   *metrics.Stats
	exec    *fanout.Executor

	httpServer    *http.Server
	metricsServer *http.Server
}

// New wires a server from configuration. Construction failures map to a
// non-zero process exit in cmd/racs.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	repos := make([]repository.Repository, 0, len(cfg.Repositories))
	for _, rc := range cfg.Repositories {
		repo, err := factory.New(ctx, rc.Class, rc.Name, rc.Options)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	manager := repository.NewManager(repos, cfg.Breaker)
	for i, rc := range cfg.Repositories {
		manager.All()[i].SetActive(rc.Active)
	}

	// A configured m below the repository count deactivates the surplus;
	// they stay available to the admin surface.
	m := cfg.EffectiveM()
	if active := manager.Active(); len(active) > m {
		for _, h := range active[m:] {
			log.Warn("deactivating surplus repository", "repository", h.Name(), "m", m)
			h.SetActive(false)
		}
	}
	if active := manager.Active(); len(active) < m {
		return nil, fmt.Errorf("not enough active repositories for m=%d (have %d)", m, len(active))
	}

	codec, err := erasure.NewCodec(cfg.RACS.K, m)
	if err != nil {
		return nil, err
	}

	coord, err := coordination.Connect(cfg.Zookeeper, log)
	if err != nil {
		return nil, err
	}

	var heads *cache.HeadCache
	if !cfg.RACS.DisableHeadCache {
		heads = cache.New(cfg.RACS.HeadCacheTTL)
	}

	var stats *metrics.Stats
	if cfg.RACS.RecordStats || cfg.Metrics.Enabled {
		stats = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		log:     log.With("component", "server"),
		manager: manager,
		codec:   codec,
		coord:   coord,
		heads:   heads,
		stats:   stats,
		exec:    fanout.NewExecutor(fanout.NewPool(cfg.RACS.WorkerPoolSize), log),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.RACS.Host, cfg.RACS.Port),
		Handler:      s,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", stats.Handler())
		s.metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	}
	return s, nil
}

// Manager exposes the repository set; the admin surface and tests use it.
func (s *Server) Manager() *repository.Manager { return s.manager }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		s.log.Info("racs listening",
			"addr", s.httpServer.Addr,
			"k", s.codec.K(), "m", s.codec.M(),
			"repositories", len(s.manager.All()),
			"max_failures", s.codec.M()-s.codec.K())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if s.metricsServer != nil {
		_ = s.metricsServer.Shutdown(shutdownCtx)
	}
	return s.httpServer.Shutdown(shutdownCtx)
}

// OpenLogFile redirects the default slog handler to the configured file.
func OpenLogFile(path string) (*slog.Logger, error) {
	if path == "" {
		return slog.Default(), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open logfile: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), nil
}
