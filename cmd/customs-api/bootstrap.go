package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/CustomsBox/config"
	customsapi "github.com/BearBump/CustomsBox/internal/api/customs_api"
	"github.com/BearBump/CustomsBox/internal/app"
	"github.com/BearBump/CustomsBox/internal/broker/kafka"
	"github.com/BearBump/CustomsBox/internal/cache/rediscache"
	"github.com/BearBump/CustomsBox/internal/services/taxids"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
)

type customsAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    customsAPIOpts
	api     *customsapi.CustomsAPI
	closers []func() error
	closeDB func()
}

func mustBootstrapCustomsAPI() *customsAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse failed, %v", err))
	}

	httpAddr := cfg.Customs.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	cacheTTL := time.Duration(cfg.Customs.TaxIDCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = taxids.DefaultCacheTTL
	}

	st := mustOpenPostgresWithRetry(cfg.Database.DSN(), 60*time.Second)
	rc := rediscache.New(cfg.Redis.Addr())
	producer := kafka.NewProducer([]string{cfg.Kafka.Addr()})

	stack := app.NewStack(cfg, st, app.NewSOAPClient(cfg), producer)
	api := customsapi.New(customsapi.Deps{
		TaxIDs:          taxids.NewValidator(rc, cacheTTL),
		Registry:        stack.Registry,
		MicDta:          stack.MicDta,
		Orchestrator:    stack.Orchestrator,
		Transactions:    stack.Transactions,
		Tracks:          stack.Tracks,
		Status:          stack.Status,
		Queue:           producer,
		SubmissionTopic: app.SubmissionRequestedTopic(cfg),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &customsAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: customsAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		api:     api,
		closers: []func() error{producer.Close, rc.Close},
		closeDB: st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgcustoms.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgcustoms.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *customsAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		_ = c()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *customsAPIApp) Run() error {
	return runCustomsAPI(a.ctx, a.opts, a.api)
}
