package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thehypotheticalgame/quiz-backend/internal/api"
	"github.com/thehypotheticalgame/quiz-backend/internal/config"
	"github.com/thehypotheticalgame/quiz-backend/internal/feedback"
	"github.com/thehypotheticalgame/quiz-backend/internal/gateway"
	"github.com/thehypotheticalgame/quiz-backend/internal/redisutils"
	"github.com/thehypotheticalgame/quiz-backend/internal/room"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.LoadEnv()
	cfg := config.FromEnv()

	log := newLogger(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rdb := redisutils.NewClient(cfg)
	defer rdb.Close()

	store := room.NewRedisStore(rdb)
	manager := room.NewManager(store, log)
	gw := gateway.New(manager, log)
	fb := feedback.NewStore(rdb, log)

	if store.Available(ctx) {
		log.Info("connected to redis, multiplayer enabled", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("redis unreachable, starting with multiplayer disabled", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.Env == "PROD" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	api.NewServer(manager, fb, cfg.Env, log).Routes(engine, gw)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: engine,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown did not complete cleanly", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func newLogger(env string) *zap.Logger {
	var log *zap.Logger
	var err error
	if env == "PROD" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return log
}
