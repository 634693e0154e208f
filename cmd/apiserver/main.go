// API server entry point for PharmaRef.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmaref/pharmaref/internal/application/analysis"
	appcompound "github.com/pharmaref/pharmaref/internal/application/compound"
	appproduct "github.com/pharmaref/pharmaref/internal/application/product"
	"github.com/pharmaref/pharmaref/internal/config"
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/postgres"
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/postgres/repositories"
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/redis"
	"github.com/pharmaref/pharmaref/internal/infrastructure/messaging/kafka"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/pharmaref/pharmaref/internal/interfaces/http"
	"github.com/pharmaref/pharmaref/internal/interfaces/http/handlers"
	"github.com/pharmaref/pharmaref/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using default configuration: %v\n", err)
		cfg = config.NewDefaultConfig()
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization failed: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting pharmaref API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
		logging.String("mode", cfg.Server.Mode),
	)

	ctx := context.Background()

	// Database: a database/sql connection for migrations and health checks,
	// a pgx pool for the repositories.
	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", logging.Err(err))
	}
	defer conn.Close()

	if cfg.Database.MigrationPath != "" {
		if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
			logger.Fatal("database migration failed", logging.Err(err))
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("postgres pool creation failed", logging.Err(err))
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis connection failed", logging.Err(err))
	}
	defer redisClient.Close()

	cacheOpts := []redis.CacheOption{}
	if cfg.Redis.KeyPrefix != "" {
		cacheOpts = append(cacheOpts, redis.WithPrefix(cfg.Redis.KeyPrefix))
	}
	if cfg.Redis.DefaultTTL > 0 {
		cacheOpts = append(cacheOpts, redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
	}
	cache := redis.NewRedisCache(redisClient, logger, cacheOpts...)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Acks:         cfg.Kafka.Acks,
		MaxRetries:   cfg.Kafka.ProducerRetries,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("kafka producer creation failed", logging.Err(err))
	}
	defer producer.Close()

	if cfg.Kafka.AutoCreateTopics {
		ensureTopics(ctx, cfg, logger)
	}

	repoLog := newRepoLogger(logger)
	compoundRepo := repositories.NewCompoundRepository(pool, repoLog)
	productRepo := repositories.NewProductRepository(pool, repoLog)
	ingredientRepo := repositories.NewIngredientRepository(pool, repoLog)
	similarityRepo := repositories.NewSimilarityRepository(pool, repoLog)

	compoundSvc := appcompound.NewService(compoundRepo, ingredientRepo, similarityRepo, cache, producer, logger)
	productSvc := appproduct.NewService(productRepo, ingredientRepo, cache, producer, logger)
	ingredientSvc := appproduct.NewIngredientService(ingredientRepo, logger)
	analysisSvc := analysis.NewService(similarityRepo, compoundRepo, cache, producer, logger)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
		EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
	}, logger)
	if err != nil {
		logger.Fatal("metrics collector creation failed", logging.Err(err))
	}

	healthHandler := handlers.NewHealthHandler(version,
		handlers.HealthCheckFunc{CheckerName: "postgres", CheckFn: conn.HealthCheck},
		handlers.HealthCheckFunc{CheckerName: "redis", CheckFn: redisClient.Ping},
	)

	corsCfg := middleware.DefaultCORSConfig()
	if cfg.Server.Mode == "debug" {
		corsCfg.AllowedOrigins = []string{"*"}
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		CompoundHandler:   handlers.NewCompoundHandler(compoundSvc, logger),
		ProductHandler:    handlers.NewProductHandler(productSvc, ingredientSvc, logger),
		IngredientHandler: handlers.NewIngredientHandler(ingredientSvc, logger),
		SimilarityHandler: handlers.NewSimilarityHandler(analysisSvc, logger),
		HealthHandler:     healthHandler,
		CORSMiddleware:    middleware.CORS(corsCfg),
		LoggingMiddleware: middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()),
		Logger:            logger,
		MetricsCollector:  collector,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	logger.Info("server stopped")
}

// loadConfig loads configuration from file, returning an error when the file
// does not exist so the caller can fall back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}

// ensureTopics creates the default topic set.  Failures are logged and
// ignored; publishing still works once the broker auto-creates topics.
func ensureTopics(ctx context.Context, cfg *config.Config, logger logging.Logger) {
	tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Warn("kafka topic manager unavailable", logging.Err(err))
		return
	}
	defer tm.Close()

	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := tm.EnsureDefaultTopics(tctx); err != nil {
		logger.Warn("ensuring kafka topics failed", logging.Err(err))
	}
}
