package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"storefront_go/internal/mockapi"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	addr := os.Getenv("MOCKAPI_ADDR")
	if addr == "" {
		addr = "localhost:4000"
	}

	srv := mockapi.NewServer()

	slog.Info("🛒 Mock storefront API listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		slog.Error("❌ Mock API failed", slog.Any("error", err))
		os.Exit(1)
	}
}
