package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/captcha"
	"github.com/certbridge/auth-service/internal/infra/config"
	"github.com/certbridge/auth-service/internal/infra/database"
	kafkainfra "github.com/certbridge/auth-service/internal/infra/kafka"
	"github.com/certbridge/auth-service/internal/infra/logger"
	redisinfra "github.com/certbridge/auth-service/internal/infra/redis"
	"github.com/certbridge/auth-service/internal/infra/security"
	postgresrepo "github.com/certbridge/auth-service/internal/repository/postgres"
	redisrepo "github.com/certbridge/auth-service/internal/repository/redis"
	"github.com/certbridge/auth-service/internal/transport/http/middleware"
	"github.com/certbridge/auth-service/internal/transport/http/routes"
	"github.com/certbridge/auth-service/internal/usecase"
)

const tokenAudience = "certbridge"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.Argon2.Memory > 0 {
		argonCfg := security.Argon2Config{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  cfg.Argon2.SaltLength,
			KeyLength:   cfg.Argon2.KeyLength,
		}
		if err := security.ConfigureArgon2(argonCfg); err != nil {
			return nil, fmt.Errorf("configure argon2: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	issuer := cfg.App.Name
	if issuer == "" {
		issuer = "certbridge-auth"
	}
	tokenManager, err := security.NewTokenManager(cfg.JWT.Secret, issuer, tokenAudience, cfg.JWT.AccessTokenTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	pendingStore := redisrepo.NewPendingLoginRepository(redisClient.Client(), cfg.Redis.PendingLoginPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	eventPublisher, producer := NewEventPublisher(cfg, log)

	captchaVerifier := captcha.NewClient(cfg.Captcha, nil)

	passwordPolicy := security.NewPasswordPolicy(cfg.Password.MinLength, cfg.Password.MaxLength, 0, cfg.Password.MinZxcvbn)

	lockoutService := usecase.NewLockoutService(repos.Accounts, eventPublisher, log)
	loginService, err := usecase.NewLoginService(
		repos.Accounts,
		repos.Sessions,
		pendingStore,
		captchaVerifier,
		eventPublisher,
		lockoutService,
		tokenManager,
		cfg.Login,
		cfg.Captcha,
		cfg.Redis.PendingLoginTTL,
		log,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init login service: %w", err)
	}

	passwordService := usecase.NewPasswordService(repos.Accounts, eventPublisher, passwordPolicy, cfg.Password, log)
	twoFactorService := usecase.NewTwoFactorService(repos.Accounts, eventPublisher, issuer, log)
	registrationService := usecase.NewRegistrationService(repos.Accounts, eventPublisher, passwordPolicy, cfg.Password, log)
	sessionService := usecase.NewSessionService(repos.Sessions, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	loginMetrics, err := middleware.NewLoginMetrics(nil, "")
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init login metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:       cfg,
		Logger:       log,
		RateLimiter:  rateLimiter,
		TokenManager: tokenManager,
		Accounts:     repos.Accounts,
		HTTPMetrics:  httpMetrics,
		LoginMetrics: loginMetrics,
		Database:     pool,
		Cache:        redisClient,
		Services: routes.ServiceSet{
			Login:        loginService,
			Registration: registrationService,
			Passwords:    passwordService,
			TwoFactor:    twoFactorService,
			Sessions:     sessionService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// NewEventPublisher picks the Kafka publisher when brokers are configured and
// falls back to the logging stub otherwise. The returned producer is nil for
// the stub.
func NewEventPublisher(cfg *config.AppConfig, log *zap.Logger) (port.EventPublisher, *kafkainfra.Producer) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log), nil
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log), nil
	}

	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log), producer
}

// newHTTPServer applies the shared server timeouts. The write deadline is
// derived from the progressive delay cap: an attempt with many prior failures
// sleeps the full cap and still has to hash, update counters, and write the
// rejection body before the deadline.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      usecase.MaxDelay() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	srv := newHTTPServer(fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port), a.engine)

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if a.cfg.Telemetry.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.Telemetry.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		a.logger.Info("starting metrics listener", zap.String("address", metricsSrv.Addr))
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrCh <- fmt.Errorf("run metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
