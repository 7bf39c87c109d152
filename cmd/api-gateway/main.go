package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ncert-tutor-api/internal/handler"
	"github.com/noah-isme/ncert-tutor-api/internal/repository"
	"github.com/noah-isme/ncert-tutor-api/internal/service"
	"github.com/noah-isme/ncert-tutor-api/pkg/cache"
	"github.com/noah-isme/ncert-tutor-api/pkg/config"
	"github.com/noah-isme/ncert-tutor-api/pkg/database"
	"github.com/noah-isme/ncert-tutor-api/pkg/jobs"
	"github.com/noah-isme/ncert-tutor-api/pkg/llm"
	"github.com/noah-isme/ncert-tutor-api/pkg/logger"
	"github.com/noah-isme/ncert-tutor-api/pkg/pdftext"
	"github.com/noah-isme/ncert-tutor-api/pkg/storage"
)

// @title NCERT Tutor API
// @version 1.0.0
// @description Textbook summaries, study tools and tutor bookings
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, logr); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and live delivery disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	library, err := storage.NewLibrary(cfg.Content.RootDir)
	if err != nil {
		return fmt.Errorf("open content library: %w", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Content.SummaryCacheTTL, logr, redisClient != nil)

	notificationSvc := service.NewNotificationService(
		notificationRepo,
		repository.NewRedisPublisher(redisClient, cfg.Notifications.ChannelPrefix),
		metricsSvc,
		logr,
		service.NotificationConfig{MaxRetries: cfg.Notifications.MaxRetries, SweepMinAge: cfg.Notifications.SweepMinAge},
	)
	queue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:     cfg.Notifications.Workers,
		MaxRetries:  cfg.Notifications.MaxRetries,
		RetryDelay:  cfg.Notifications.RetryDelay,
		OnExhausted: notificationSvc.HandleExhausted,
		Logger:      logr,
	})
	notificationSvc.AttachQueue(queue)

	scheduler := jobs.NewScheduler(logr, time.Minute)
	if err := scheduler.Add("notification-sweep", cfg.Notifications.SweepSpec, func(ctx context.Context) error {
		_, err := notificationSvc.Sweep(ctx)
		return err
	}); err != nil {
		return err
	}

	authSvc := service.NewAuthService(userRepo, tutorRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             cfg.JWT.Issuer,
	})
	tutorSvc := service.NewTutorService(tutorRepo, validate, logr, cfg.Booking.DefaultTimezone)
	bookingSvc := service.NewBookingService(bookingRepo, tutorRepo, notificationSvc, metricsSvc, validate, logr, cfg.Booking.DefaultTimezone)
	conversationSvc := service.NewConversationService(conversationRepo, logr)

	completer := llm.New(cfg.OpenAI, logr)
	loader := service.NewContentLoader(library, pdftext.LedongthucExtractor{}, cfg.Content.PageMode, cfg.Content.MaxPages, logr)
	summarySvc := service.NewSummaryService(loader, completer, cacheSvc, metricsSvc, validate, logr, cfg.Content.SummaryCacheTTL)
	chatSvc := service.NewChatService(loader, completer, metricsSvc, validate, logr)
	exerciseSvc := service.NewExerciseService(loader, completer, metricsSvc, validate, logr)

	router := newRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		tutors:        tutorSvc,
		bookings:      bookingSvc,
		notifications: notificationSvc,
		conversations: conversationSvc,
		summaries:     summarySvc,
		chat:          chatSvc,
		exercises:     exerciseSvc,
		metrics:       metricsSvc,
		readiness:     readinessChecks(db, redisClient),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	queue.Start(ctx)
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		scheduler.Stop(shutdownCtx)
		queue.Stop()
		return err
	})

	return g.Wait()
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
