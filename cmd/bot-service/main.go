package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/config"
	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
	"github.com/konorlevich/filestore-bot/internal/bot-service/delivery"
	"github.com/konorlevich/filestore-bot/internal/bot-service/directory"
	"github.com/konorlevich/filestore-bot/internal/bot-service/handler"
	"github.com/konorlevich/filestore-bot/internal/bot-service/health"
	"github.com/konorlevich/filestore-bot/internal/bot-service/ingest"
	"github.com/konorlevich/filestore-bot/internal/bot-service/links"
	"github.com/konorlevich/filestore-bot/internal/bot-service/metrics"
	"github.com/konorlevich/filestore-bot/internal/bot-service/transport/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, continuing with environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	logger := log.New()
	logger.SetLevel(cfg.LogLevel)
	l := logger.WithFields(log.Fields{
		"port":      cfg.Port,
		"db_driver": cfg.DB.Driver,
		"bot":       cfg.Bot.Username,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer l.Println("got interruption signal")

	db, err := database.NewDb(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		l.WithError(err).Fatal("failed to open database")
	}
	repo := database.NewRepository(db)
	if err := repo.SeedSettings(ctx, delivery.Defaults(cfg.Bot.CustomCaption)); err != nil {
		l.WithError(err).Fatal("failed to seed settings")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bot, err := telegram.New(cfg.Bot.Token, cfg.Bot.StorageChannel, l.WithField("component", "telegram"))
	if err != nil {
		l.WithError(err).Fatal("failed to start bot")
	}

	dir := directory.New(cfg.Bot.AdminIDs, repo, l.WithField("component", "directory"))
	captions := delivery.NewCaptions(repo, dir, l.WithField("component", "captions"))
	engine := links.NewEngine(repo, dir, m, l.WithField("component", "links"))
	manager := ingest.NewManager(repo, bot, engine, captions, cfg.MaxFileSize, m, l.WithField("component", "ingest"))

	var sched delivery.Scheduler
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			l.WithError(err).Fatal("redis connection failed")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				l.WithError(err).Error("redis close returned an err")
			}
		}()
		rs := delivery.NewRedisScheduler(rdb, delivery.DefaultQueueKey, bot, m, l.WithField("component", "cleanup"))
		go rs.Run(ctx)
		defer rs.Wait()
		sched = rs
		l.WithField("redis", cfg.Redis.Addr).Info("cleanup queue in redis")
	} else {
		sched = delivery.NewTimerScheduler(bot, m, l.WithField("component", "cleanup"))
	}
	deliverer := delivery.NewDeliverer(bot, sched, captions, cfg.DeleteAfter, m, l.WithField("component", "delivery"))

	router := handler.NewRouter(bot, manager, engine, deliverer, dir, captions, repo, handler.Options{
		BotUsername:  cfg.Bot.Username,
		LinkHost:     cfg.Bot.LinkHost,
		AdminContact: cfg.Bot.AdminContact,
		MaxFileSize:  cfg.MaxFileSize,
	}, l.WithField("component", "handler"))

	server := &http.Server{Addr: ":" + cfg.Port, Handler: health.SetupRouter(reg)}
	go func() {
		l.Printf("health check listening to port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Fatal("listen and serve returned err")
		}
	}()
	defer func() {
		if err := server.Shutdown(context.Background()); err != nil {
			l.WithError(err).Error("health server shutdown returned an err")
		}
	}()

	if err := bot.Listen(ctx, router.Handle); err != nil && !errors.Is(err, context.Canceled) {
		l.WithError(err).Error("stopped receiving updates")
	}
}
