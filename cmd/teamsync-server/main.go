package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/coordinator"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/eventbus"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushnotify"
	pushsubrepo "github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushsubscription/repositoryimpl"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/server"
	snapshotrepo "github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot/repositoryimpl"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/clog"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/panicerr"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/storage"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "sentinel" {
		runSentinel()
		return
	}
	runServer()
}

func runServer() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	snapshotRepo := snapshotrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	// Setup coordination engine
	coord := coordinator.New(bus, snapshotRepo, config.EngineEnvFromEnv(env))

	// Setup push notifications
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := pushnotify.NewSender(vapidEnv, pushSubRepo)
	pushDispatcher := pushnotify.NewDispatcher(bus, pushSender)

	srv := server.NewServer(env, coord, bus, snapshotRepo, pushSubRepo)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		if err := panicerr.SafeContext(coord.Start)(ctx); err != nil {
			slog.Error("coordinator error", "error", err)
			cancel()
		}
	}()
	go pushDispatcher.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give open streams time to finish after their contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
