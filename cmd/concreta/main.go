package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/concreta/concreta/cmd/concreta/cli"
	"github.com/concreta/concreta/internal/app"
	"github.com/concreta/concreta/internal/notify"
	"github.com/concreta/concreta/internal/observability"
	"github.com/concreta/concreta/internal/platform/cache"
	"github.com/concreta/concreta/internal/platform/db"
	"github.com/concreta/concreta/jobs"
)

const usage = `usage: concreta [serve | migrate | jobs trigger <job> [month] | jobs stats]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	switch flag.Arg(0) {
	case "", "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "jobs":
		err = runJobs(ctx, cfg, flag.Args()[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("concreta", slog.String("command", flag.Arg(0)), slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()
	c := cli.NewJobsCLI(client, inspector)

	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New(usage)
		}
		month := ""
		if len(args) > 2 {
			month = args[2]
		}
		info, err := c.Trigger(ctx, args[1], month)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		return errors.New(usage)
	}
	return nil
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer jobClient.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	metrics := observability.NewMetrics()
	services, err := app.NewServices(app.Backends{
		Config:   cfg,
		Pool:     pool,
		Redis:    redisClient,
		Notifier: notify.NewAsynqNotifier(jobClient, cfg.NotifyLocale, logger),
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	params := app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		JobHandler: jobs.NewHandler(inspector, logger),
		Database:   pool,
		Metrics:    metrics,
	}
	services.Handlers(&params)
	router := app.NewRouter(params)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
