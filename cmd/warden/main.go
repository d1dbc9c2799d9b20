package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warden-auth/warden/internal/app"
	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/platform/cache"
	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/rbac"
	"github.com/warden-auth/warden/internal/roles"
	"github.com/warden-auth/warden/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

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
	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	roleRepo := roles.NewRepository(dbpool)
	roleService := roles.NewService(roleRepo)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, userService, secretBox, tokenIssuer)
	authMiddleware := auth.NewMiddleware(tokenIssuer, userService, logger)

	discordClient := auth.NewDiscordClient(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURI)
	stateStore := auth.NewStateStore(redisClient, 10*time.Minute)
	authHandler := auth.NewHandler(logger, authService, userService, discordClient, roleService, stateStore, cfg.IsProduction())

	usersHandler := users.NewHandler(logger, userService, rbacService, rbacMiddleware)
	rolesHandler := roles.NewHandler(logger, roleService, rbacService, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
	})

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
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
