package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"Food_Share/internal/config"
	"Food_Share/internal/logging"
	"Food_Share/internal/metrics"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/mysql"
	"Food_Share/internal/repository/redis"
	"Food_Share/internal/router"
	"Food_Share/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := mysql.Open(cfg.MySQLDSN, mysql.Options{MaxOpenConns: cfg.MaxOpenConns})
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	defer func() { _ = mysql.Close(db) }()

	// auto-migrate is meant for development
	if cfg.AutoMigrate {
		if err = mysql.Migrate(db); err != nil {
			log.WithError(err).Fatal("migrate")
		}
	}
	store := mysql.NewStore(db)

	var sessions service.SessionStore
	if cfg.RedisEnabled() {
		rdb, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer func() { _ = rdb.Close() }()
		sessions = redis.NewSessionRepository(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, session tokens cannot be revoked")
	}

	var images service.ImageStore
	if cfg.CloudinaryEnabled() {
		cld, err := pkg.NewCloudinaryStore(pkg.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		})
		if err != nil {
			log.WithError(err).Fatal("configure cloudinary")
		}
		images = cld
	}

	// Sink order fixes each sink's bit in the outbox delivery mask; append only.
	var sinks []service.Sink
	if cfg.KafkaEnabled() {
		producer := pkg.NewEventPublisher(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		defer func() { _ = producer.Close() }()
		sinks = append(sinks, service.Sink{Name: "kafka", Send: service.KafkaSender(producer)})
	}
	if cfg.SMTPEnabled() {
		mailer := pkg.NewSMTPMailer(pkg.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		sinks = append(sinks, service.Sink{Name: "mail", Send: service.MailSender(mailer, store)})
	}
	if len(sinks) == 0 {
		sinks = append(sinks, service.Sink{Name: "log", Send: service.LogSender(log)})
	}

	m := metrics.New()
	tokens := pkg.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	engine := router.InitRouter(router.Deps{
		Users:       service.NewUserService(store, tokens, sessions, log),
		Posts:       service.NewPostService(store, images, m, log),
		Requests:    service.NewRequestService(store, m, log),
		Metrics:     m,
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
		Ping:        func(ctx context.Context) error { return mysql.Ping(ctx, db) },
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relayer := service.NewOutboxRelayer(store.Outbox, sinks, m, log, service.RelayerOptions{
		BatchSize: cfg.OutboxBatchSize,
		MaxRetry:  cfg.OutboxMaxRetry,
		Interval:  cfg.OutboxInterval,
	})
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relayer.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	<-relayDone
	log.Info("stopped")
}
