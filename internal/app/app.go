package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmart/checkout-engine/pkg/database"
	"github.com/oakmart/checkout-engine/pkg/health"
	"github.com/oakmart/checkout-engine/pkg/httpclient"
	pkgkafka "github.com/oakmart/checkout-engine/pkg/kafka"

	"github.com/oakmart/checkout-engine/internal/config"
	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/event"
	handler "github.com/oakmart/checkout-engine/internal/handler/http"
	"github.com/oakmart/checkout-engine/internal/pricing"
	"github.com/oakmart/checkout-engine/internal/repository/postgres"
	"github.com/oakmart/checkout-engine/internal/service"
	"github.com/oakmart/checkout-engine/internal/shipping"
	"github.com/oakmart/checkout-engine/migrations"
)

// App wires together all dependencies and runs the checkout engine.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	producer   *pkgkafka.Producer
	checkout   *service.CheckoutService
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "checkout-engine")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	couponRepo := postgres.NewCouponRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	ledger := coupon.NewLedger(couponRepo, logger)

	engine, err := shipping.NewEngine()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build shipping engine: %w", err)
	}

	// Tax provider behind a retrying, circuit-broken client. Without a
	// configured URL every order falls back to the flat default rate.
	var taxProvider pricing.TaxProvider
	if cfg.TaxProviderURL != "" {
		baseClient := httpclient.New(httpclient.Config{
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			RetryWaitMin:    500 * time.Millisecond,
			RetryWaitMax:    5 * time.Second,
			MaxConnsPerHost: 100,
		})
		cbCfg := httpclient.CircuitBreakerConfig{
			Name:         "tax-provider",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}
		cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
		taxProvider = pricing.NewHTTPTaxProvider(cbClient, cfg.TaxProviderURL,
			time.Duration(cfg.TaxProviderTimeoutMs)*time.Millisecond)
		logger.Info("tax provider configured",
			slog.String("url", cfg.TaxProviderURL),
			slog.Int("timeout_ms", cfg.TaxProviderTimeoutMs),
		)
	}

	calculator := pricing.NewCalculator(taxProvider, engine, ledger, logger)
	publisher := event.NewPublisher(producer, "checkout-engine", logger)
	checkoutService := service.NewCheckoutService(sessionRepo, calculator, ledger, publisher, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	router := handler.NewRouter(checkoutService, ledger, engine, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		producer:   producer,
		checkout:   checkoutService,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and the expiry sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.runSweeper(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runSweeper periodically expires PENDING sessions past their deadline.
func (a *App) runSweeper(ctx context.Context) {
	interval := time.Duration(a.cfg.SweepIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, interval)
			if _, err := a.checkout.ExpireDue(sweepCtx); err != nil {
				a.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// Shutdown gracefully stops all components: HTTP server first to drain
// in-flight requests, then the Kafka producer, then the database pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()
	a.logger.Info("application stopped")

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d error(s): %v", len(errs), errs)
	}
	return nil
}
