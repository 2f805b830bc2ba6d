package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/tlschat/internal/api"
	"github.com/mcoot/tlschat/internal/config"
	"github.com/mcoot/tlschat/internal/factory"
	"github.com/mcoot/tlschat/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.FromEnv()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	tlsConfig, err := server.LoadTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		logger.Error("failed to load TLS certificate", slog.String("error", err.Error()))
		return 1
	}

	// Create application factory
	factoryCfg := factory.Config{
		AuthConfig:   cfg.Auth,
		ConnConfig:   cfg.Conn,
		Logger:       logger,
		StorageType:  cfg.StorageType,
		RegistryType: cfg.RegistryType,
	}
	if cfg.StorageType == config.StorageTypeRedis {
		factoryCfg.RedisConfig = &cfg.Redis
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	chatServer := server.New(app.ConnHandler(), tlsConfig, cfg.Server, logger)

	var adminServer *api.Server
	if cfg.Admin.Addr != "" {
		adminServer = api.NewServer(app.AdminRouter(cfg.AdminToken), cfg.Admin, logger)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- chatServer.Start()
	}()
	if adminServer != nil {
		go func() {
			errCh <- adminServer.Serve()
		}()
	}

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if adminServer != nil {
		if err := adminServer.Shutdown(context.Background()); err != nil {
			logger.Error("admin shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}
	if err := chatServer.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	return exitCode
}
