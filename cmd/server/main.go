package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/exemple-users/internal/application"
	"github.com/eugenenazirov/exemple-users/internal/config"
	"github.com/eugenenazirov/exemple-users/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	kingpinApp := kingpin.New("exemple-users", "Exemple users - CRUD HTTP service backed by MongoDB")
	envFile := kingpinApp.Flag("env-file", "Path to a dotenv file loaded before reading the environment").Default(".env").String()
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	host := kingpinApp.Flag("host", "Interface the HTTP listener binds to (API_HOST)").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service (API_PORT)").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (LOG_LEVEL)").String()

	if _, err := kingpinApp.Parse(args); err != nil {
		kingpinApp.Errorf("%s", err)
		return 1
	}

	bootstrap, err := logging.NewBootstrap()
	if err != nil {
		return 1
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		bootstrap.Error("failed to load env file", zap.Error(err))
		return 1
	}

	overrides := &config.CLIOverrides{ConfigFile: *configFile}
	if *host != "" {
		overrides.Host = host
	}
	if *port != "" {
		overrides.Port = port
	}
	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			bootstrap.Error("invalid configuration", zap.Array("errors", verr.Fields))
		} else {
			bootstrap.Error("failed to load configuration", zap.Error(err))
		}
		_ = bootstrap.Sync()
		return 1
	}

	logger, err := logging.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		bootstrap.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectTimeout)
	app, err := application.New(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return 1
	}

	if err := app.Start(); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		_ = app.Shutdown(context.Background())
		return 1
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
	return 0
}

type stoppable interface {
	Shutdown(ctx context.Context) error
	Server() *http.Server
}

func shutdown(app stoppable, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("shutting down server", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := app.Server().Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
