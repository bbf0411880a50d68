package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/internal/config"
	"github.com/pollen-club/backoffice/internal/seed"
	v1 "github.com/pollen-club/backoffice/pkg/controllers/v1"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/notify"
	"github.com/pollen-club/backoffice/pkg/router"
	"github.com/pollen-club/backoffice/pkg/scheduler"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	gin.SetMode(cfg.GinMode)

	// Log format can be explicitly set.
	// If it is not set, it defaults to human readable for development
	// and JSON for release
	output := io.Writer(os.Stdout)
	if (cfg.LogFormat == "" && gin.IsDebugging()) || cfg.LogFormat == "human" {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(output).With().Timestamp().Logger()

	// Create data directory
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		err = os.MkdirAll(dir, os.ModePerm)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
	}

	db, err := models.Connect(cfg.DBPath)
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	notifier := notify.Logger{Logger: log.Logger.With().Str("component", "notify").Logger()}
	co := v1.New(db, notifier)

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}

		_, err = seed.Apply(context.Background(), db, co.Settings, f)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
	}

	s := scheduler.New(cfg.RetryPolicy())
	jobs := scheduler.Jobs(scheduler.Schedules{
		Dismissal:  cfg.DismissalCron,
		Review:     cfg.ReviewCron,
		Allocation: cfg.AllocationCron,
	}, co.Evaluator, co.Engine, notifier)
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			log.Fatal().Msg(err.Error())
		}
	}

	r, err := router.Config(router.Options{
		URL:              cfg.URL,
		CorsAllowOrigins: cfg.CorsAllowOrigins,
		EnablePprof:      cfg.EnablePprof,
	})
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	router.AttachRoutes(co, r.Group(cfg.URL.Path), cfg.EnablePprof)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.Start()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msg(err.Error())
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}
	s.Stop()

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.Close()
	}
}
