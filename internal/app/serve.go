package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	httpapi "github.com/i474232898/snowfall-bets/internal/api/http"
	"github.com/i474232898/snowfall-bets/internal/scheduler"
)

// NewHTTPApp builds the Fiber app serving c.
func NewHTTPApp(c *Components) *fiber.App {
	app := httpapi.NewApp(httpapi.AppOptions{
		Name:        "snowfall-bets",
		CORSOrigins: c.Config.CORSOrigins,
		AccessLog:   true,
	})
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Estimator:   c.Estimator,
		Bets:        c.Bets,
		History:     c.History,
		Metrics:     c.Metrics.Handler(),
		PollTimeout: c.JobTimeout(),
	})
	return app
}

// Serve runs the scheduler and the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, c *Components) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	// Scheduler is the single regular writer of the estimator state.
	sched := scheduler.New(c.Estimator, c.Config.PollInterval, c.JobTimeout(), c.Logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := NewHTTPApp(c)

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Infow("http server listening", "port", c.Config.Port)
		errCh <- app.Listen(":" + c.Config.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		c.Logger.Errorw("error during shutdown", "error", err)
	}
	return nil
}
