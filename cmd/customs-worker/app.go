package main

import (
	"context"
	"log/slog"

	"github.com/BearBump/CustomsBox/config"
	"github.com/BearBump/CustomsBox/internal/app"
	"github.com/BearBump/CustomsBox/internal/broker/kafka"
	"github.com/BearBump/CustomsBox/internal/cache/rediscache"
	"github.com/BearBump/CustomsBox/internal/integrations/soap"
	"github.com/BearBump/CustomsBox/internal/services/customs"
	"github.com/BearBump/CustomsBox/internal/services/submitter"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"golang.org/x/sync/errgroup"
)

const defaultConsumerGroup = "customs-worker"

type messageConsumer interface {
	Consume(ctx context.Context, h kafka.Handler) error
	Close() error
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (st app.Storage, closeFn func(), err error)
	newProducer    func(cfg *config.Config) (customs.Publisher, func() error)
	newRateLimiter func(cfg *config.Config) (submitter.RateLimiter, func() error)
	newSOAPClient  func(cfg *config.Config) soap.Client
	newConsumer    func(cfg *config.Config, topic, group string) messageConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (app.Storage, func(), error) {
			st, err := pgcustoms.New(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (customs.Publisher, func() error) {
			p := kafka.NewProducer([]string{cfg.Kafka.Addr()})
			return p, p.Close
		},
		newRateLimiter: func(cfg *config.Config) (submitter.RateLimiter, func() error) {
			rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
			return rl, rl.Close
		},
		newSOAPClient: app.NewSOAPClient,
		newConsumer: func(cfg *config.Config, topic, group string) messageConsumer {
			return kafka.NewConsumer([]string{cfg.Kafka.Addr()}, topic, group)
		},
	}
}

// newCustomsWorker builds the submitter on top of the shared customs stack.
// The returned close function releases the producer, the limiter and storage.
func newCustomsWorker(cfg *config.Config, f workerFactories) (*submitter.Submitter, func(), error) {
	st, closeDB, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	pub, closePub := f.newProducer(cfg)
	rl, closeRL := f.newRateLimiter(cfg)
	closeFn := func() {
		for _, c := range []func() error{closePub, closeRL} {
			if c == nil {
				continue
			}
			if err := c(); err != nil {
				slog.Warn("worker close", "err", err)
			}
		}
		if closeDB != nil {
			closeDB()
		}
	}

	stack := app.NewStack(cfg, st, f.newSOAPClient(cfg), pub)
	s := submitter.New(stack.Registry, stack.Orchestrator, rl).
		WithRateLimit(cfg.Customs.WorkerRateLimitPerMinute)
	return s, closeFn, nil
}

// RunCustomsWorker consumes SubmissionRequested messages until ctx is done.
// Every reader joins the same consumer group, so partitions are spread across them.
func RunCustomsWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	s, closeFn, err := newCustomsWorker(cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()
	return consume(ctx, cfg, f, s)
}

func consume(ctx context.Context, cfg *config.Config, f workerFactories, s *submitter.Submitter) error {
	topic := app.SubmissionRequestedTopic(cfg)
	group := cfg.Customs.KafkaConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}
	readers := cfg.Customs.WorkerConcurrency
	if readers <= 0 {
		readers = 1
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < readers; i++ {
		c := f.newConsumer(cfg, topic, group)
		g.Go(func() error {
			defer c.Close()
			return c.Consume(gctx, func(key, value []byte) error {
				return s.Handle(gctx, key, value)
			})
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
