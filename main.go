package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chronolink/auth"
	"chronolink/cache"
	"chronolink/config"
	"chronolink/database"
	"chronolink/handlers"
	"chronolink/middleware"
	"chronolink/routes"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Starting ChronoLink backend...")

	var db *database.DB
	for attempt := 1; attempt <= 3; attempt++ {
		db, err = database.Connect(context.Background(), cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("MongoDB connection failed")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	log.Info().Msg("MongoDB connected")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create indexes")
	}
	cancelIndexes()

	store, err := cache.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build cache")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	h := handlers.New(db, tokens, store)
	authMW := middleware.NewAuth(db, tokens)

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go limiter.SweepLoop(sweepCtx, 10*time.Minute, 15*time.Minute)

	router := routes.SetupRouter(cfg, h, authMW, limiter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	if err := db.Disconnect(); err != nil {
		log.Error().Err(err).Msg("MongoDB disconnect failed")
	}

	log.Info().Msg("Server stopped")
}
