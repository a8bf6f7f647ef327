package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/api"
	"ptcoach/pt-manager/internal/config"
	"ptcoach/pt-manager/internal/email"
	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository/mongo"
	"ptcoach/pt-manager/internal/service"
	"ptcoach/pt-manager/internal/storage"
)

// @title PT Manager API
// @version 1.0
// @description Client management for a personal trainer: onboarding, payments, checks, anamnesi and chat.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	ctx := context.Background()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logging.New(os.Stderr, "release").Error(ctx, "could not load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.Server.Mode)
	log.Info(ctx, "configuration loaded", "address", cfg.Server.Address, "timezone", cfg.Lifecycle.Timezone)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Error(ctx, "could not connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		log.Info(ctx, "disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error(ctx, "failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	// --- Ensure Indexes ---
	indexCtx, cancelIndex := context.WithTimeout(ctx, time.Minute)
	err = mongo.EnsureIndexes(indexCtx, appDB)
	cancelIndex()
	if err != nil {
		log.Error(ctx, "could not ensure indexes", "error", err)
		os.Exit(1)
	}

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(ctx, cfg.S3, log)
	if err != nil {
		log.Error(ctx, "failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}

	// --- Email ---
	var sender email.Sender
	if cfg.Email.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From, log)
	} else {
		log.Warn(ctx, "email.resend_api_key not set, emails will only be logged")
		sender = email.NewNoopSender(log)
	}
	mailer := email.NewMailer(sender, cfg.Email.ReplyTo, cfg.Email.AppBaseURL)

	// --- Initialize Repositories ---
	clientRepo := mongo.NewMongoClientRepository(appDB)
	coachRepo := mongo.NewMongoCoachRepository(appDB)
	paymentRepo := mongo.NewMongoPaymentRepository(appDB)
	checkRepo := mongo.NewMongoCheckRepository(appDB)
	anamnesiRepo := mongo.NewMongoAnamnesiRepository(appDB)
	chatRepo := mongo.NewMongoChatRepository(appDB)
	activityRepo := mongo.NewMongoActivityRepository(appDB)
	resetRepo := mongo.NewMongoPasswordResetRepository(appDB)

	// --- Initialize Services ---
	lc := cfg.Lifecycle
	classifier := lifecycle.NewClassifier(lc.ExpiringThresholdDays, lc.Location())
	revocations := guard.NewRevocations()
	dismissed := lifecycle.NewDismissStore(cfg.JWT.Expiration)

	authService := service.NewAuthService(coachRepo, clientRepo, resetRepo, mailer, revocations, log,
		cfg.JWT.Secret, cfg.JWT.Expiration, cfg.Email.ResetTokenTTL)
	services := api.Services{
		Auth:      authService,
		Clients:   service.NewClientService(clientRepo, fileStorage, mailer, classifier, log),
		Payments:  service.NewPaymentService(clientRepo, paymentRepo, classifier, log),
		Checks:    service.NewCheckService(checkRepo, clientRepo, fileStorage, log, lc.CheckInCadenceDays, lc.CheckEditWindow),
		Anamnesi:  service.NewAnamnesiService(anamnesiRepo, clientRepo, fileStorage, log),
		Uploads:   service.NewUploadService(fileStorage, log),
		Chat:      service.NewChatService(chatRepo, coachRepo, clientRepo, log),
		Dashboard: service.NewDashboardService(clientRepo, paymentRepo, checkRepo, activityRepo, classifier, dismissed, log, lc.FeedLimit, lc.CheckInCadenceDays),
	}

	if cfg.Admin.Email != "" {
		created, err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			log.Error(ctx, "could not bootstrap coach account", "error", err)
			os.Exit(1)
		}
		if created {
			log.Info(ctx, "coach account created", "email", cfg.Admin.Email)
		}
	}

	// --- Initialize Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(api.AccessLogger(os.Stdout), gin.Recovery())
	api.SetupRoutes(router, services, log)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: chat streams stay open.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info(ctx, "server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "ListenAndServe error", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info(ctx, "shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error(ctx, "server forced to shutdown", "error", err)
	}
	log.Info(ctx, "server exiting")
}
