package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ncert-tutor-api/api/swagger"
	"github.com/noah-isme/ncert-tutor-api/internal/handler"
	"github.com/noah-isme/ncert-tutor-api/internal/middleware"
	"github.com/noah-isme/ncert-tutor-api/internal/models"
	"github.com/noah-isme/ncert-tutor-api/internal/service"
	"github.com/noah-isme/ncert-tutor-api/pkg/config"
	"github.com/noah-isme/ncert-tutor-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ncert-tutor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ncert-tutor-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth          *service.AuthService
	tutors        *service.TutorService
	bookings      *service.BookingService
	notifications *service.NotificationService
	conversations *service.ConversationService
	summaries     *service.SummaryService
	chat          *service.ChatService
	exercises     *service.ExerciseService
	metrics       *service.MetricsService
	readiness     map[string]handler.ReadinessCheck
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	tutorHandler := handler.NewTutorHandler(deps.tutors, deps.bookings)
	bookingHandler := handler.NewBookingHandler(deps.bookings)
	inboxHandler := handler.NewInboxHandler(deps.notifications, deps.conversations)
	contentHandler := handler.NewContentHandler(deps.summaries, deps.chat, deps.exercises)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	tutors := secured.Group("/tutors")
	tutors.GET("", tutorHandler.List)
	tutors.GET("/me", middleware.RequireRoles(models.RoleTutor), tutorHandler.Me)
	tutors.PUT("/me/availability", middleware.RequireRoles(models.RoleTutor), tutorHandler.UpdateAvailability)
	tutors.GET("/:id", tutorHandler.Get)
	tutors.GET("/:id/availability", tutorHandler.Availability)
	tutors.GET("/:id/availability/check", tutorHandler.CheckAvailability)

	bookings := secured.Group("/bookings", middleware.RequireRoles(models.RoleStudent))
	bookings.POST("", bookingHandler.Create)
	bookings.GET("/me", bookingHandler.ListMine)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)

	tutorBookings := secured.Group("/tutor/bookings", middleware.RequireRoles(models.RoleTutor))
	tutorBookings.GET("", bookingHandler.ListForTutor)
	tutorBookings.GET("/export", bookingHandler.Export)
	tutorBookings.POST("/:id/accept", bookingHandler.Accept)
	tutorBookings.POST("/:id/reject", bookingHandler.Reject)

	secured.GET("/conversations", inboxHandler.Conversations)
	secured.GET("/notifications", inboxHandler.Notifications)
	secured.POST("/notifications/:id/read", inboxHandler.MarkRead)

	content := secured.Group("/content", middleware.WithResponseMeta())
	content.POST("/summaries", contentHandler.Summarize)
	content.POST("/summaries/pdf", contentHandler.SummaryPDF)
	content.POST("/chat", contentHandler.Chat)
	content.POST("/exercises", contentHandler.Exercises)

	return r
}
