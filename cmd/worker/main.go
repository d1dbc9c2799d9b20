package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warden-auth/warden/internal/app"
	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/users"
	"github.com/warden-auth/warden/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	cipherKey, err := cfg.CipherKey()
	if err != nil {
		logger.Error("decode cipher key", slog.Any("error", err))
		os.Exit(1)
	}
	secretBox, err := auth.NewSecretBox(cipherKey)
	if err != nil {
		logger.Error("init secret box", slog.Any("error", err))
		os.Exit(1)
	}

	userService := users.NewService(users.NewRepository(pool))
	discordClient := auth.NewDiscordClient(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURI)

	authRepo := auth.NewRepository(pool)
	sweeper := jobs.NewSessionSweeper(authRepo, logger)
	refresher := jobs.NewProfileRefresher(authRepo, secretBox, discordClient, userService, logger)

	sweepTask, err := jobs.NewSessionSweepTask(time.Now())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	refreshTask, err := jobs.NewProfileRefreshTask(time.Now())
	if err != nil {
		logger.Error("build profile refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionSweep, Handler: sweeper.Handle},
			{Type: jobs.TaskProfileRefresh, Handler: refresher.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionSweepSpec, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ProfileRefreshSpec, Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	// Catch up immediately instead of waiting for the first cron tick.
	if _, err := client.EnqueueSessionSweep(ctx); err != nil {
		logger.Warn("enqueue startup sweep", slog.Any("error", err))
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
