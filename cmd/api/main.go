// Package main is the entrypoint for the Tally API server.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/cache"
	"github.com/tallyapp/tally/internal/config"
	"github.com/tallyapp/tally/internal/events"
	"github.com/tallyapp/tally/internal/handler"
	"github.com/tallyapp/tally/internal/metrics"
	"github.com/tallyapp/tally/internal/repository"
	"github.com/tallyapp/tally/internal/server"
	"github.com/tallyapp/tally/internal/service"
)

func main() {
	ctx := context.Background()

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	var recorder metrics.Recorder = metrics.NewNoop()
	var snapshotter metrics.Snapshotter
	if cfg.MetricsEnabled {
		inMemory := metrics.NewInMemory()
		recorder, snapshotter = inMemory, inMemory
	}

	publisher, err := newPublisher(cfg, cacheClient)
	if err != nil {
		logger.Error("failed to connect event backend",
			slog.String("backend", cfg.EventsBackend),
			slog.String("error", sanitizeError(err, cfg.AMQPURL)),
		)
		_ = cacheClient.Close()
		repo.Close()
		os.Exit(1)
	}
	dispatcher := events.NewDispatcher(publisher, logger, recorder)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiresIn)
	expenseService := service.NewExpenseService(
		repo,
		cache.NewSummaryCache(cacheClient, cfg.SummaryCacheTTL),
		dispatcher,
		recorder,
		logger,
	)
	authService := service.NewAuthService(repo, tokens, logger)

	r := setupRouter(routerDeps{
		cfg:         cfg,
		logger:      logger,
		root:        handler.New(),
		health:      handler.NewHealthHandler(repo, cacheClient, logger),
		metrics:     handler.NewMetricsHandler(snapshotter),
		expenses:    handler.NewExpenseHandler(expenseService, logger),
		accounts:    handler.NewAuthHandler(authService, logger),
		tokens:      tokens,
		users:       repo,
		identities:  cache.NewIdentityCache(cacheClient, cfg.AuthCacheTTL),
		rateLimiter: cacheClient,
		recorder:    recorder,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stopped in reverse: events drain first, then Redis, then Postgres.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("events", func(context.Context) error {
		return dispatcher.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"events_backend", cfg.EventsBackend,
		"metrics_enabled", cfg.MetricsEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newPublisher builds the lifecycle event backend named by the config.
func newPublisher(cfg *config.Config, cacheClient *cache.Cache) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsBackendRedis:
		return events.NewStreamPublisher(cacheClient.Client()), nil
	case config.EventsBackendAMQP:
		return events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return events.NewNoop(), nil
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "tally")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces any of secrets in err's text with its redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
