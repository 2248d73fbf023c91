package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/lobby-relay/internal/server"
)

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	cfg := server.NewConfigFromEnv()
	logger := server.NewLogger(cfg.Env, os.Stdout)
	logger.Info("starting lobby relay server", "env", cfg.Env, "tcp", cfg.TCPAddr, "http", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("lobby relay server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("lobby relay server stopped")
}
