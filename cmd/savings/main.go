package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"savings/internal/backend"
	"savings/internal/cache"
	"savings/internal/config"
	apphttp "savings/internal/http"
	"savings/internal/ledger"
	"savings/internal/log"
	"savings/internal/middleware/ratelimit"
	"savings/internal/rates"
	"savings/internal/worker"
)

const (
	ratesCacheSize       = 256
	cacheCleanupInterval = 10 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Savings service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Savings service stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	table := rates.DefaultTable()
	if cfg.RatesFile != "" {
		t, err := rates.LoadTable(cfg.RatesFile)
		if err != nil {
			return err
		}
		table = t
	}
	provider := rates.NewCached(table, ratesCacheSize, cfg.RatesCacheTTL)
	logger.Info("Loaded exchange rates", "currencies", table.Currencies())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	l := ledger.New(provider,
		ledger.WithStore(res.Store),
		ledger.WithPublishers(res.Publishers...),
		ledger.WithLogger(logger))
	if err := l.Restore(ctx); err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	caches := cache.NewManager(logger.WithComponent(log.ComponentApp).Logger)
	caches.Register(provider.Cache())
	caches.Register(limiter.Cache())

	srv := apphttp.NewServer(":"+cfg.Port, l, logger,
		apphttp.WithCurrencies(table),
		apphttp.WithRateLimit(limiter))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if res.AMQP != nil {
		w := worker.NewContributionWorker(l, logger)
		caches.Register(w.Dedupe())
		g.Go(func() error {
			return w.Run(gctx, res.AMQP)
		})
	} else {
		logger.Info("Contribution worker disabled - no AMQP broker available")
	}

	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	return g.Wait()
}
