package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/refundly/webhooks/internal/config"
	"github.com/refundly/webhooks/internal/infra/jobs"
	"github.com/refundly/webhooks/internal/infra/postgres"
	"github.com/refundly/webhooks/internal/infra/redis"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

// env holds the connections a command opened. Close releases them in reverse order.
type env struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *postgres.DB
	redis  *redis.Client
	queues *redis.QueueRegistry
	broker *jobs.Broker

	closers []func() error
}

type envOptions struct {
	database bool
	redis    bool
	// broker implies redis.
	broker bool
}

func openEnv(ctx context.Context, opts envOptions) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	e := &env{
		cfg: cfg,
		log: logger.New(logger.Config{Level: level, Format: "text", Output: os.Stderr}),
	}

	if opts.database {
		db, err := postgres.New(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		e.db = db
		e.closers = append(e.closers, db.Close)
	}

	if opts.redis || opts.broker {
		rc, err := redis.New(&cfg.Redis, e.log)
		if err != nil {
			return nil, errors.Join(err, e.Close())
		}
		e.redis = rc
		e.queues = redis.NewQueueRegistry(rc.Client(), e.log)
		e.closers = append(e.closers, rc.Close)
	}

	if opts.broker {
		e.broker = jobs.NewBroker(jobs.BrokerConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			TaskTimeout:   cfg.Webhook.TaskTimeout,
		}, e.queues, e.log)
		e.closers = append(e.closers, e.broker.Close)
	}

	return e, nil
}

// Close releases every connection and joins their errors.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// declaringRegistrar declares vendor queues without consuming them. The running server
// attaches consumers to declared queues at startup.
type declaringRegistrar struct {
	broker *jobs.Broker
}

func (r declaringRegistrar) RegisterVendor(ctx context.Context, vendorID shared.ID) error {
	return r.broker.DeclareQueue(ctx, webhook.VendorQueue(vendorID))
}
