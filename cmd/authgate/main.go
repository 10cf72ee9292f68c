// Command authgate runs the authentication service: the engine, a store
// backend, the HTTP API, and the Prometheus metrics endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	authgate "github.com/rlvait/authgate"
	"github.com/rlvait/authgate/httpapi"
	"github.com/rlvait/authgate/internal/audit"
	"github.com/rlvait/authgate/metrics/export/prometheus"
	"github.com/rlvait/authgate/provider"
	"github.com/rlvait/authgate/provider/google"
	"github.com/rlvait/authgate/store/memory"
	"github.com/rlvait/authgate/store/postgres"
	redisstore "github.com/rlvait/authgate/store/redis"
)

type serverEnv struct {
	Port         string `env:"PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	StoreBackend string `env:"AUTHGATE_STORE" envDefault:"memory"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"authgate"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	AuditStdout bool `env:"AUTHGATE_AUDIT_STDOUT" envDefault:"false"`
}

func main() {
	logger := logrus.New()

	var srvEnv serverEnv
	if err := env.Parse(&srvEnv); err != nil {
		logger.WithError(err).Fatal("failed to parse server environment")
	}
	if level, err := logrus.ParseLevel(srvEnv.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	cfg, err := authgate.ConfigFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("failed to load engine configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(srvEnv)
	if err != nil {
		logger.WithError(err).Fatal("failed to open credential store")
	}
	defer cleanup()

	builder := authgate.New().
		WithConfig(cfg).
		WithStore(store).
		WithWarnFunc(logger.Warnf)
	if srvEnv.AuditStdout {
		builder = builder.WithAuditSink(audit.NewJSONWriterSink(os.Stdout))
	}
	engine, err := builder.Build()
	if err != nil {
		logger.WithError(err).Fatal("failed to build engine")
	}
	defer engine.Close()

	registry, err := buildProviders(ctx, srvEnv)
	if err != nil {
		logger.WithError(err).Fatal("failed to configure oauth providers")
	}

	server := httpapi.NewServer(engine, httpapi.Options{
		Providers:   registry,
		FrontendURL: srvEnv.FrontendURL,
		Metrics:     prometheus.NewExporter(engine).Handler(),
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + srvEnv.Port,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":  srvEnv.Port,
			"store": srvEnv.StoreBackend,
		}).Info("authgate started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("authgate stopped")
}

// openStore selects the credential store backend. The returned cleanup
// closes the backing connection and is safe to call on every path.
func openStore(srvEnv serverEnv) (authgate.Store, func(), error) {
	switch srvEnv.StoreBackend {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		if srvEnv.DatabaseDSN == "" {
			return nil, nil, errors.New("DATABASE_DSN is required for the postgres store")
		}
		db, err := sql.Open("postgres", srvEnv.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.New(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     srvEnv.RedisAddr,
			Password: srvEnv.RedisPassword,
			DB:       srvEnv.RedisDB,
		})
		store, err := redisstore.New(client, srvEnv.RedisPrefix)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() { client.Close() }, nil
	default:
		return nil, nil, errors.New("unknown store backend: " + srvEnv.StoreBackend)
	}
}

// buildProviders returns the OAuth registry, or nil when no provider is
// configured so the HTTP layer skips the federated routes entirely.
func buildProviders(ctx context.Context, srvEnv serverEnv) (*provider.Registry, error) {
	if srvEnv.GoogleClientID == "" {
		return nil, nil
	}
	g, err := google.New(ctx, srvEnv.GoogleClientID, srvEnv.GoogleClientSecret, srvEnv.GoogleRedirectURL)
	if err != nil {
		return nil, err
	}
	return provider.NewRegistry(g), nil
}
