package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/api"
	"github.com/vetly/vetly/internal/appointments"
	"github.com/vetly/vetly/internal/circuitbreaker"
	"github.com/vetly/vetly/internal/config"
	"github.com/vetly/vetly/internal/db"
	"github.com/vetly/vetly/internal/metrics"
	"github.com/vetly/vetly/internal/notify"
	"github.com/vetly/vetly/internal/observ"
	"github.com/vetly/vetly/internal/redis"
	"github.com/vetly/vetly/internal/reminders"
	"github.com/vetly/vetly/internal/sqs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting vetly api",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	ctx := context.Background()
	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	appointmentRepo := db.NewAppointmentRepo(database, logger)
	petRepo := db.NewPetRepo(database, logger)
	queueRepo := db.NewQueueRepo(database, logger)
	ledgerRepo := db.NewLedgerRepo(database, logger)
	deliveryLogRepo := db.NewDeliveryLogRepo(database, logger)

	scheduler := appointments.NewService(appointmentRepo, petRepo, logger)

	// Redis backs idempotency and rate limiting. Both degrade to off
	// when it is unreachable.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency and rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	}

	var idempotencyService *redis.IdempotencyService
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		idempotencyService = redis.NewIdempotencyService(redisClient, logger)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  cfg.RateLimit,
			Window: 1 * time.Minute,
		})
		defer redisClient.Close()
	}

	var producer *sqs.Producer
	if cfg.SQSQueueURL != "" {
		producer, err = sqs.NewProducer(ctx, sqs.Config{
			Region:   cfg.SQSRegion,
			QueueURL: cfg.SQSQueueURL,
		}, logger)
		if err != nil {
			logger.Warn("sqs producer unavailable, wake-up events disabled",
				zap.Error(err),
			)
			producer = nil
		}
	}

	sender, err := buildSender(ctx, cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(queueRepo, deliveryLogRepo, sender, notify.Config{
		PollInterval: cfg.DispatchInterval,
		BatchSize:    cfg.DispatchBatchSize,
	}, logger)

	generator := reminders.NewGenerator(reminders.Config{
		Interval: cfg.ReminderInterval,
	}, appointmentRepo, petRepo, petRepo, ledgerRepo, queueRepo, logger)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go dispatcher.Start(bgCtx)
	go generator.Start(bgCtx)

	logger.Info("background loops started",
		zap.Duration("dispatch_interval", cfg.DispatchInterval),
		zap.Duration("reminder_interval", cfg.ReminderInterval),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	handler := api.NewHandler(logger, scheduler, queueRepo, deliveryLogRepo, generator, dispatcher, cfg.CronSecret)
	if idempotencyService != nil {
		handler = handler.WithIdempotency(idempotencyService)
	}
	if producer != nil {
		handler = handler.WithProducer(producer)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.TenantKeyFunc))
		handler.Routes(r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

// buildSender assembles the channel senders, each behind its own circuit
// breaker. In development everything routes to the log sender.
func buildSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notify.Sender, error) {
	if cfg.Env == "development" {
		logger.Info("development mode, notifications go to the log sender")
		return notify.NewLogSender(logger), nil
	}

	emailSender, err := notify.NewSESEmailSender(ctx, notify.SESConfig{
		Region:      cfg.AWSRegion,
		FromAddress: cfg.SESFromEmail,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SES email sender: %w", err)
	}

	var senders []notify.Sender
	senders = append(senders, notify.NewProtectedSender(emailSender,
		circuitbreaker.New(circuitbreaker.DefaultConfig("ses-email"), logger), logger))

	smsSender, err := notify.NewSNSSMSSender(ctx, notify.SMSConfig{
		Region:      cfg.SNSRegion,
		CountryCode: cfg.SMSCountryCode,
		TrunkPrefix: cfg.SMSTrunkPrefix,
		LocalLength: cfg.SMSLocalLength,
		SenderID:    cfg.SMSSenderID,
	}, logger)
	if err != nil {
		logger.Warn("SNS sender unavailable, SMS channel disabled", zap.Error(err))
	} else {
		senders = append(senders, notify.NewProtectedSender(smsSender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("sns-sms"), logger), logger))
	}

	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		waSender := notify.NewWhatsAppSender(notify.WhatsAppConfig{
			AccessToken:   cfg.WhatsAppToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			BaseURL:       cfg.WhatsAppBaseURL,
		}, logger)
		senders = append(senders, notify.NewProtectedSender(waSender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("whatsapp"), logger), logger))
	}

	senders = append(senders, notify.NewPushSender(logger))

	logger.Info("initialized channel senders",
		zap.Bool("email_enabled", true),
		zap.Bool("sms_enabled", smsSender != nil),
		zap.Bool("whatsapp_enabled", cfg.WhatsAppToken != ""),
	)

	return notify.NewMultiSender(logger, senders...), nil
}
