package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"animebot/internal/app"
	"animebot/internal/config"
	"animebot/internal/dedupe"
	"animebot/internal/ratelimit"
	"animebot/internal/server"
	"animebot/internal/session"
	"animebot/internal/telegram"
	"animebot/internal/util"
	"animebot/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error("mongo connect failed", "err", err)
		os.Exit(1)
	}
	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		logger.Error("mongo unreachable", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("mongo disconnect failed", "err", err)
		}
	}()
	dataStore := store.NewMongoStore(mongoClient, cfg.MongoDatabase)

	sessionTTL, err := cfg.ParseSessionTTL()
	if err != nil {
		logger.Error("bad session ttl", "err", err)
		os.Exit(1)
	}
	sessions := session.NewManager(sessionTTL)
	defer sessions.Stop()

	rateWindow, err := cfg.ParseRateWindow()
	if err != nil {
		logger.Error("bad rate window", "err", err)
		os.Exit(1)
	}
	var guard dedupe.Guard
	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		guard = dedupe.NewRedisGuard(cfg.RedisAddr, cfg.RedisPassword, "animebot:update", time.Hour)
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "animebot:ratelimit", cfg.RateLimit, rateWindow)
	} else {
		guard = dedupe.NewMemoryGuard(time.Hour)
		limiter, err = ratelimit.NewMemoryFixedWindowLimiter(cfg.RateLimit, rateWindow)
	}
	if err != nil {
		logger.Error("rate limiter init failed", "err", err)
		os.Exit(1)
	}

	bot, err := telegram.NewClient(cfg.BotToken, logger)
	if err != nil {
		logger.Error("bot api init failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to telegram", "bot", bot.Username())

	core, err := app.New(app.Config{
		Store:    dataStore,
		Sender:   bot,
		Sessions: sessions,
		Dedupe:   guard,
		Limiter:  limiter,
		AdminID:  cfg.AdminID,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("app init failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.New(logger).Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("bot polling started")
		err := bot.Run(ctx, core)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("exiting on error", "err", err)
		os.Exit(1)
	}
	logger.Info("shut down cleanly")
}
