package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/infra/app"
	"github.com/certbridge/auth-service/internal/infra/config"
	"github.com/certbridge/auth-service/internal/infra/database"
	"github.com/certbridge/auth-service/internal/infra/logger"
	postgresrepo "github.com/certbridge/auth-service/internal/repository/postgres"
	"github.com/certbridge/auth-service/internal/usecase"
)

// The sweeper releases accounts whose lockout window has passed. With
// -interval 0 it runs a single sweep and exits, which suits cron; a positive
// interval keeps it running as a sidecar daemon.
func main() {
	interval := flag.Duration("interval", 0, "sweep period; 0 runs a single sweep and exits")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, zapLogger)
	if err != nil {
		zapLogger.Fatal("init postgres", zap.Error(err))
	}
	defer pool.Close()

	publisher, producer := app.NewEventPublisher(cfg, zapLogger)
	if producer != nil {
		defer func() {
			_ = producer.Close()
		}()
	}

	repos := postgresrepo.NewRepositories(pool)
	lockouts := usecase.NewLockoutService(repos.Accounts, publisher, zapLogger)

	if err := sweep(ctx, lockouts, zapLogger); err != nil {
		zapLogger.Fatal("sweep failed", zap.Error(err))
	}
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	zapLogger.Info("unlock sweeper running", zap.Duration("interval", *interval))
	for {
		select {
		case <-ctx.Done():
			zapLogger.Info("unlock sweeper stopping")
			return
		case <-ticker.C:
			if err := sweep(ctx, lockouts, zapLogger); err != nil {
				zapLogger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

func sweep(ctx context.Context, lockouts *usecase.LockoutService, log *zap.Logger) error {
	unlocked, err := lockouts.UnlockExpiredAccounts(ctx)
	if err != nil {
		return err
	}
	log.Info("lockout sweep completed", zap.Int("unlocked_accounts", unlocked))
	return nil
}
