package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/internal/infra/http"
	"github.com/refundly/webhooks/internal/infra/http/routes"
	"github.com/refundly/webhooks/internal/infra/jobs"
	"github.com/refundly/webhooks/internal/infra/postgres"
	"github.com/refundly/webhooks/internal/infra/redis"
	"github.com/refundly/webhooks/pkg/logger"
	"github.com/refundly/webhooks/pkg/migrations"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(ctx, &cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	if cfg.Database.AutoMigrate {
		applied, err := migrations.NewRunner(db.DB, log).Up(ctx)
		if err != nil {
			log.Error("failed to apply migrations", "error", err)
			return 1
		}
		log.Info("migrations applied", "count", applied)
	}

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	queueRegistry := redis.NewQueueRegistry(redisClient.Client(), log)

	// ==========================================================================
	// Queue Broker & Consumers
	// ==========================================================================
	broker := jobs.NewBroker(jobs.BrokerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		TaskTimeout:   cfg.Webhook.TaskTimeout,
	}, queueRegistry, log)
	defer closeWithLog(broker, "broker", log)

	consumers := jobs.NewConsumerPool(jobs.ConsumerConfig{
		RedisAddr:       cfg.Redis.Addr(),
		RedisPassword:   cfg.Redis.Password,
		RedisDB:         cfg.Redis.DB,
		ShutdownTimeout: shutdownBudget(cfg.Server.ShutdownTimeout),
	}, log)
	defer consumers.Stop()

	// ==========================================================================
	// Repositories & Services
	// ==========================================================================
	repos := NewRepositories(db)
	log.Info("repositories initialized")

	services := NewServices(&ServiceDeps{
		Config:    cfg,
		Log:       log,
		Repos:     repos,
		Broker:    broker,
		Consumers: consumers,
	})
	log.Info("services initialized")

	restored, err := services.Queues.Restore(ctx, repos.Vendor, queueRegistry)
	if err != nil {
		log.Error("failed to restore delivery queues", "error", err)
		return 1
	}
	log.Info("delivery queues restored", "vendor_queues", restored, "consumers", len(consumers.Queues()))

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	handlers := NewHandlers(&HandlerDeps{
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		Repos:       repos,
		Services:    services,
	})

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers, routes.Options{
		Tokens:    services.Tokens,
		RateLimit: server.RateLimit(),
		Logger:    log,
	})

	// ==========================================================================
	// Controllers
	// ==========================================================================
	manager, err := NewControllerManager(cfg, services, log)
	if err != nil {
		log.Error("failed to initialize controllers", "error", err)
		return 1
	}
	if err := manager.Start(ctx); err != nil {
		log.Error("failed to start controllers", "error", err)
		return 1
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		log.Info("shutting down...", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting notifications before the background work that serves them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		exitCode = 1
	}

	manager.Stop()
	consumers.Stop()
	// broker, redis and database are closed by the deferred calls above, in reverse order.

	log.Info("application stopped")
	return exitCode
}

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.IsProduction() {
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stdout,
		})
	} else {
		log = logger.NewDevelopment()
	}
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}

// shutdownBudget leaves part of the shutdown timeout for closing connections.
func shutdownBudget(total time.Duration) time.Duration {
	if total <= 0 {
		return 10 * time.Second
	}
	return total * 2 / 3
}
