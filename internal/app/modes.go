package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stableloop/auctiond/internal/server"
	"github.com/stableloop/auctiond/internal/server/handler"
	"github.com/stableloop/auctiond/internal/server/ws"
)

// FullMode runs everything: the bidding engine's height ticker, the
// cancellation sweep, and the HTTP + WebSocket API server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Engine.Run(ctx, a.cfg.Engine.TickInterval.Duration)
	})

	g.Go(func() error {
		return deps.Sweeper.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServerMode runs the bidding engine and the API server without
// participating in the cancellation sweep.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Engine.Run(ctx, a.cfg.Engine.TickInterval.Duration)
	})

	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// SweepMode runs only the cancellation sweep. The node neither ticks the
// engine nor serves the API; it competes for the sweep lock and submits
// cancel transactions while the protocol is halted.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Sweeper.Run(ctx)
	})

	return g.Wait()
}

// startHTTPServer adds the API server and the WebSocket hub to the given
// errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.Events, deps.Engine, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Engine),
		Auctions: handler.NewAuctionHandler(deps.Manager, deps.Engine, a.logger),
		Totals:   handler.NewTotalsHandler(deps.Manager, a.logger),
		Admin:    handler.NewAdminHandler(deps.Halt, deps.Oracle, deps.Events, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	// Shut the server down when the group's context ends.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}
