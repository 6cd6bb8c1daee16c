package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/accounts/internal/config"
	"github.com/Skotchmaster/accounts/internal/events"
	"github.com/Skotchmaster/accounts/internal/httpserver"
	"github.com/Skotchmaster/accounts/internal/middleware"
	"github.com/Skotchmaster/accounts/internal/repo"
	"github.com/Skotchmaster/accounts/internal/search"
	"github.com/Skotchmaster/accounts/internal/service"
	pkgdb "github.com/Skotchmaster/accounts/pkg/db"
	"github.com/Skotchmaster/accounts/pkg/hash"
	"github.com/Skotchmaster/accounts/pkg/logging"
	"github.com/Skotchmaster/accounts/pkg/tokens"
	"github.com/Skotchmaster/accounts/pkg/tracing"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	l := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(l)

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	db, err := pkgdb.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeDB(l, db)
	if err := repo.Migrate(db.WithContext(initCtx)); err != nil {
		return err
	}

	tp, err := tracing.NewProvider(initCtx, tracing.ProviderConfig{
		ServiceName: cfg.ServiceName,
		URL:         cfg.TracingURL,
		InstanceID:  cfg.InstanceID,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := tp.Shutdown(sctx); err != nil {
			l.Error("tracer shutdown failed", "error", err)
		}
	}()

	accounts := &repo.GormRepo{DB: db}
	engine := tokens.NewEngine([]byte(cfg.JWTAccessSecret), []byte(cfg.JWTRefreshSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	svc := &service.AccountService{
		Repo:       accounts,
		Tokens:     engine,
		Tracer:     tracing.New(tp, cfg.ServiceName),
		BcryptCost: cfg.BcryptCost,
	}
	hash.DummyHash(cfg.BcryptCost)

	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopic(initCtx, cfg.KafkaBrokers[0], cfg.KafkaTopic, 1); err != nil {
			l.Warn("kafka topic check failed", "topic", cfg.KafkaTopic, "error", err)
		}
		prod, err := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer func() {
			if err := prod.Close(); err != nil {
				l.Error("kafka close error", "error", err)
			}
		}()
		svc.Events = prod
	} else {
		l.Info("KAFKA_BROKERS is empty, account events disabled")
	}

	if cfg.ESURL != "" {
		es, err := search.NewClient(initCtx, search.Config{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
		})
		if err != nil {
			return err
		}
		svc.Directory = search.NewDirectory(es, cfg.ESIndex)
	} else {
		l.Info("ES_URL is empty, account search disabled")
	}
	defer svc.WaitSideEffects()

	e := httpserver.New(l)
	httpserver.Register(e, &httpserver.Deps{
		AccountHandler: &httpserver.AccountHTTP{Svc: svc},
		Session:        middleware.NewSession(engine, accounts),
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		l.Error("server shutdown error", "error", err)
	}
	l.Info("shutdown complete")
	return nil
}

func closeDB(l *slog.Logger, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		l.Error("db() error", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		l.Error("db close error", "error", err)
	}
}
