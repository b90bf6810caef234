// Package serve implements the daemon subcommand: it wires the hub client,
// the feed engine and the HTTP API together and runs until interrupted.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jefvlamings/reolink-feed/internal/api"
	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/diskmanager"
	"github.com/jefvlamings/reolink-feed/internal/feed"
	"github.com/jefvlamings/reolink-feed/internal/history"
	"github.com/jefvlamings/reolink-feed/internal/hub"
	"github.com/jefvlamings/reolink-feed/internal/logging"
	"github.com/jefvlamings/reolink-feed/internal/observability"
	"github.com/jefvlamings/reolink-feed/internal/recording"
	"github.com/jefvlamings/reolink-feed/internal/scheduler"
	"github.com/jefvlamings/reolink-feed/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection feed daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(settings)
		},
	}
	return cmd
}

func runDaemon(settings *conf.Settings) error {
	logger := logging.ForService("serve")
	logger.Info("starting reolink-feed",
		"version", settings.Version, "hub", settings.Hub.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	hubClient := hub.New(settings, logging.ForService("hub"))
	defer hubClient.Close()

	resolver := recording.NewResolver(hubClient, hubClient.HTTP(), settings, logging.ForService("recording"))
	enforcer := diskmanager.NewEnforcer(settings.Feed.MediaRoot, settings.Feed.MediaSourceID,
		logging.ForService("diskmanager"), metrics)
	sched := scheduler.New(nil, logging.ForService("scheduler"))
	timelineStore := store.New(settings.Feed.StorePath, logging.ForService("store"))

	manager := feed.New(settings, timelineStore, sched, hubClient, hubClient, resolver,
		enforcer, metrics, logging.ForService("feed"))
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feed engine: %w", err)
	}
	defer manager.Stop()

	reconciler := history.New(manager, hubClient, settings, logging.ForService("history"))

	// Event stream from the hub feeds the correlator until shutdown.
	go func() {
		err := hubClient.StreamTransitions(ctx, func(t feed.Transition) {
			manager.HandleTransition(ctx, t)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("state stream ended", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.New(e, manager, reconciler, settings, registry, logging.ForService("api"))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("http server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", "error", err)
	}
	return nil
}
