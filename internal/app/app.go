// Package app wires all dialsift subsystems into a running service.
//
// The App struct owns the full lifecycle: New binds the listen socket and
// assembles the HTTP surface (call ingress, health probes, optional metrics
// endpoint), Run serves until the context is cancelled, and Shutdown tears
// the remaining subsystems down in order.
//
// For testing, inject a mock detector engine or pre-built metrics via
// functional options. When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dialsift/dialsift/internal/config"
	"github.com/dialsift/dialsift/internal/health"
	"github.com/dialsift/dialsift/internal/ingest"
	"github.com/dialsift/dialsift/internal/observe"
	"github.com/dialsift/dialsift/pkg/provider/dsp"
	"github.com/dialsift/dialsift/pkg/provider/dsp/energy"
)

// shutdownTimeout bounds how long Run waits for in-flight calls to finish
// once the context is cancelled.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	holder  *config.Holder
	engine  dsp.Engine
	metrics *observe.Metrics

	ln  net.Listener
	srv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App) error

// WithEngine injects a detector engine instead of the built-in energy engine.
func WithEngine(e dsp.Engine) Option {
	return func(a *App) error {
		a.engine = e
		return nil
	}
}

// WithMetrics injects a pre-built metrics set instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) error {
		a.metrics = m
		return nil
	}
}

// WithConfigFile watches path for changes and hot-swaps the detection
// defaults on every valid rewrite. New calls to /v1/analyze pick up the new
// values; calls already in flight keep the parameters they started with.
func WithConfigFile(path string) Option {
	return func(a *App) error {
		w, err := config.NewWatcher(path, func(_, next *config.Config) {
			a.holder.Replace(next)
			a.metrics.ConfigReloads.Add(context.Background(), 1)
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		a.closers = append(a.closers, func() error {
			w.Stop()
			return nil
		})
		return nil
	}
}

// New assembles the service around cfg and binds the listen socket, so a
// failure to claim the address surfaces here rather than in Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{holder: config.NewHolder(cfg)}
	a.metrics = observe.DefaultMetrics()

	for _, o := range opts {
		if err := o(a); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	if a.engine == nil {
		a.engine = energy.Engine{}
	}

	mux := http.NewServeMux()
	ingest.NewServer(a.holder, a.engine, a.metrics).Register(mux)
	health.New(health.DetectorCheck(a.engine, a.holder.Params().SilenceThreshold)).Register(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("app: listen on %s: %w", cfg.Server.ListenAddr, err)
	}
	a.ln = ln
	a.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.closers = append(a.closers, func() error {
		err := ln.Close()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	})

	return a, nil
}

// Addr reports the bound listen address. Useful when the config asks for
// port 0.
func (a *App) Addr() string {
	return a.ln.Addr().String()
}

// Config returns the current configuration snapshot.
func (a *App) Config() *config.Config {
	return a.holder.Current()
}

// Run serves the HTTP surface and blocks until ctx is cancelled or the
// server fails. On cancellation it drains in-flight requests within the
// shutdown budget before returning ctx's error.
func (a *App) Run(ctx context.Context) error {
	slog.Info("app running", "addr", a.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.Serve(a.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sdCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(sdCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down the remaining subsystems in order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
