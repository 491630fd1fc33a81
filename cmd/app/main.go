package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storefront_go/internal/app"
)

func main() {
	// .env is optional; env vars set by the shell win either way.
	_ = godotenv.Load()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initial hydration: cache first, then network
	bootstrap.SyncAll(ctx)

	// 4. Realtime hints keep the caches warm across sessions
	bootstrap.ConnectRealtime(ctx)

	// 5. Periodic refresh loop. The stores themselves enforce freshness, so
	// a tick inside the window is a cheap no-op.
	ticker := time.NewTicker(bootstrap.Config.FreshnessWindow())
	defer ticker.Stop()

	slog.InfoContext(ctx, "✨ Storefront sync client operational. Press Ctrl+C to exit.")

	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down gracefully...")
			return
		case <-ticker.C:
			bootstrap.Refresh(ctx)
		}
	}
}
