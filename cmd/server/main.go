package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/clock"
	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/database"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/router"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

const (
	kafkaConsumerGroup = "booking-log"
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cfg := config.Load()
	if err := config.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.WithError(err).Warn("falling back to info level")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logrus.WithError(err).WithField("driver", cfg.DBDriver).Fatal("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		logrus.WithError(err).Fatal("migrate database")
	}

	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	txm := repository.NewTxManager(db)

	if n, err := tokens.PurgeExpired(ctx, time.Now()); err != nil {
		logrus.WithError(err).Warn("purge expired refresh tokens")
	} else if n > 0 {
		logrus.WithField("count", n).Info("purged expired refresh tokens")
	}

	// nil when Redis is down; cache and limiter then pass through.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(cfg.Cache, rdb)

	pub, err := queue.NewPublisher(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("configure broker")
	}
	defer pub.Close()

	if cfg.BookingConsumerEnabled {
		go runConsumer(ctx, cfg)
	}

	clk := clock.NewSystem()
	bookingSvc := service.NewBookingService(txm, events, bookings, clk)
	eventSvc := service.NewEventService(events, clk)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterEvents(e, handler.NewEventHandler(eventSvc, cache), cfg.JWTSecret, cache)
	router.RegisterBookings(e, handler.NewBookingHandler(bookingSvc, pub, cache), cfg.JWTSecret)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
		ExposedHeaders:   []string{echo.HeaderXRequestID, "Retry-After"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(e),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Env, "broker": cfg.Broker}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}

func runConsumer(ctx context.Context, cfg config.Config) {
	var err error
	switch cfg.Broker {
	case queue.BrokerRabbitMQ:
		err = queue.StartBookingConsumer(ctx, cfg.RabbitURL, cfg.BookingLogPath)
	case queue.BrokerKafka:
		err = queue.StartKafkaBookingConsumer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, kafkaConsumerGroup, cfg.BookingLogPath)
	default:
		logrus.WithField("broker", cfg.Broker).Warn("booking consumer enabled without a broker")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("booking consumer stopped")
	}
}
