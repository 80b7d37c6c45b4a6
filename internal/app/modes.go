package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/truthbond/internal/cache/redis"
	"github.com/alanyoungcy/truthbond/internal/domain"
	"github.com/alanyoungcy/truthbond/internal/ledger"
	"github.com/alanyoungcy/truthbond/internal/notify"
	"github.com/alanyoungcy/truthbond/internal/registry"
	"github.com/alanyoungcy/truthbond/internal/server"
	"github.com/alanyoungcy/truthbond/internal/server/handler"
	"github.com/alanyoungcy/truthbond/internal/server/ws"
	"github.com/alanyoungcy/truthbond/internal/service"
)

// buildCore assembles the ledger and judge registry with the full event sink
// fan-out: the durable event store always, plus the redis publisher and the
// notifier when their backends are wired.
func (a *App) buildCore(deps *Dependencies) (*ledger.Ledger, *registry.Registry) {
	sinks := []domain.EventSink{deps.Events}
	if deps.SignalBus != nil {
		sinks = append(sinks, redis.NewEventPublisher(deps.SignalBus))
	}
	if deps.Notifier != nil {
		sinks = append(sinks, notify.NewEventSink(deps.Notifier))
	}

	led := ledger.New(deps.Bonds, deps.Judges, deps.Bank, a.logger, sinks...)
	reg := registry.New(deps.Judges, a.logger, sinks...)
	return led, reg
}

// healthDeps builds the health check map from whatever backends are wired.
func healthDeps(deps *Dependencies) map[string]handler.Pinger {
	checks := make(map[string]handler.Pinger)
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3
	}
	return checks
}

// startHTTPServer builds the API server and registers its run and shutdown
// goroutines on the group.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, led *ledger.Ledger, reg *registry.Registry) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(healthDeps(deps), a.logger),
		Bonds:  handler.NewBondHandler(led, deps.Events, a.logger),
		Judges: handler.NewJudgeHandler(reg, a.logger),
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, redis.EventChannel, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startWorkers registers the settlement watcher and, when blob storage is
// wired, the archive worker.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies, led *ledger.Ledger) {
	watcher := service.NewWatcher(
		deps.Bonds,
		led,
		deps.Operator,
		a.cfg.Ledger.AutoClaimTimeouts,
		deps.LockManager,
		a.cfg.Ledger.LockTTL.Duration,
		a.cfg.Ledger.WatchInterval.Duration,
		a.logger,
	)
	g.Go(func() error { return watcher.Run(ctx) })

	if deps.BlobWriter != nil && deps.SignalBus != nil {
		archiver := service.NewArchiver(
			deps.SignalBus,
			redis.EventStream,
			deps.Bonds,
			deps.BlobWriter,
			0,
			a.logger,
		)
		g.Go(func() error { return archiver.Run(ctx) })
	}
}

// ServeMode runs the HTTP API without background workers.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	led, reg := a.buildCore(deps)
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, led, reg)
	return g.Wait()
}

// WatchMode runs the background workers without the API.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	led, _ := a.buildCore(deps)
	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps, led)
	return g.Wait()
}

// FullMode runs the API and the background workers in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	led, reg := a.buildCore(deps)
	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, led, reg)
	}
	a.startWorkers(ctx, g, deps, led)
	return g.Wait()
}

// MemoryMode runs the API and watcher against the in-memory adapters. There
// is no redis in this mode, so the WebSocket feed, rate limiting, and the
// archive worker are off.
func (a *App) MemoryMode(ctx context.Context, deps *Dependencies) error {
	return a.FullMode(ctx, deps)
}
