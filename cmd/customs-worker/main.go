package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/CustomsBox/config"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse failed, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f := defaultWorkerFactories()
	s, closeFn, err := newCustomsWorker(cfg, f)
	if err != nil {
		panic(err)
	}
	defer closeFn()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(gctx, cfg, f, s)
	})
	g.Go(func() error {
		return runWorkerHTTPServer(gctx, workerHTTPOpts{
			httpAddr:    cfg.Customs.WorkerHTTPAddr,
			swaggerPath: os.Getenv("workerSwaggerPath"),
			submitter:   s,
			cfg:         cfg,
			onListen: func(addr string) {
				slog.Info("worker http listening", "addr", addr)
			},
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
