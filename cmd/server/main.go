package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/marina-reservation/internal/config"
	"github.com/iliyamo/marina-reservation/internal/database"
	"github.com/iliyamo/marina-reservation/internal/handler"
	"github.com/iliyamo/marina-reservation/internal/middleware"
	"github.com/iliyamo/marina-reservation/internal/queue"
	"github.com/iliyamo/marina-reservation/internal/repository"
	"github.com/iliyamo/marina-reservation/internal/router"
	"github.com/iliyamo/marina-reservation/internal/service"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load()
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var events service.Publisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		events = service.RabbitPublisher{URL: cfg.RabbitURL}
		consumer := queue.AuditConsumer{URL: cfg.RabbitURL, LogPath: cfg.AuditLogPath}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	svc := service.New(service.Stores{
		Catways:      repository.NewCatwayRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Users:        repository.NewUserRepo(db),
		Tokens:       repository.NewTokenRepo(db),
	},
		service.WithPublisher(events),
		service.WithRetry(service.RetryConfig{Attempts: uint(cfg.RetryAttempts), Delay: cfg.RetryDelay}),
		service.WithAuth(service.AuthConfig{
			JWTSecret:      cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
			BcryptCost:     cfg.BcryptCost,
		}),
		service.WithRecentLimit(cfg.DashboardRecent),
	)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb))

	h := handler.New(svc, cfg.JWTSecret, cfg.RequestTimeout)
	router.Register(e, h, db, router.Options{
		JWTSecret:  cfg.JWTSecret,
		Clock:      svc.Now,
		Cache:      cfg.Cache,
		CacheStore: middleware.NewResponseStore(cfg.Cache, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Bool("redis", rdb != nil).Bool("events", cfg.EventsEnabled).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
