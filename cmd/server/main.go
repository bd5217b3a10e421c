package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
	"github.com/parlorgames/parlor-backend/internal/config"
	"github.com/parlorgames/parlor-backend/internal/engine"
	"github.com/parlorgames/parlor-backend/internal/engine/drawing"
	"github.com/parlorgames/parlor-backend/internal/engine/poker"
	"github.com/parlorgames/parlor-backend/internal/handlers"
	"github.com/parlorgames/parlor-backend/internal/pool"
	"github.com/parlorgames/parlor-backend/internal/router"
	"github.com/parlorgames/parlor-backend/internal/server"
	"github.com/parlorgames/parlor-backend/internal/store"
	"github.com/parlorgames/parlor-backend/internal/timer"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memory := store.NewMemory()

	var rooms store.RoomStore = memory
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[main] postgres: %v", err)
		}
		defer pg.Close()
		rooms = pg
		log.Printf("[main] room store: postgres")
	}

	var states store.StateStore = memory
	if cfg.RedisAddr != "" {
		rd := store.NewRedis(cfg.RedisAddr)
		if err := rd.Ping(ctx); err != nil {
			log.Fatalf("[main] redis: %v", err)
		}
		defer rd.Close()
		states = rd
		log.Printf("[main] state store: redis at %s", cfg.RedisAddr)
	}

	registry := engine.NewRegistry()
	registry.Register(internal.GameTypeDrawing, drawing.NewFactory(), drawing.Metadata())
	registry.Register(internal.GameTypePoker, poker.NewFactory(), poker.Metadata())

	conns := pool.New()
	timers := timer.NewService()
	limiter := router.NewRateLimiter()
	rt := router.New(limiter, conns)

	service := handlers.New(conns, timers, registry, rooms, states, limiter)
	service.RegisterAll(rt)

	srv := server.New(cfg.Port, rt, service)

	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
