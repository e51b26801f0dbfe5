package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/kredia/kredia-backend/docs"
	"github.com/kredia/kredia-backend/internal/config"
	"github.com/kredia/kredia-backend/internal/credit"
	"github.com/kredia/kredia-backend/internal/crypto"
	"github.com/kredia/kredia-backend/internal/handler"
	"github.com/kredia/kredia-backend/internal/metrics"
	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/provider"
	"github.com/kredia/kredia-backend/internal/repository/postgres"
	"github.com/kredia/kredia-backend/internal/repository/storage"
	"github.com/kredia/kredia-backend/internal/service"
	"github.com/kredia/kredia-backend/internal/websocket"
)

// @title Kredia Loan Engine API
// @version 1.0
// @description Loan lifecycle and repayment engine.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Sensitive-field cipher for national IDs at rest
	fieldCipher, err := crypto.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create field cipher")
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(pool, fieldCipher)
	loanRepo := postgres.NewLoanRepository(pool)
	installmentRepo := postgres.NewInstallmentRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	receiptRepo, err := storage.NewS3ReceiptRepository(context.Background(), cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize receipt storage")
	}

	// Payment provider client
	paymentProvider := provider.NewHTTPProvider(
		cfg.Provider.BaseURL, cfg.Provider.Secret, cfg.Provider.Timeout, log.Logger)

	// Live notification hub
	hub := websocket.NewHub()

	// Auth token manager and middleware
	tokens := middleware.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authMiddleware := middleware.NewAuthMiddleware(tokens)
	idempotency := middleware.NewIdempotency(idempotencyRepo)
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, middleware.DefaultBurstSize)
	defer rateLimiter.Stop()

	// Initialize services
	notificationService := service.NewNotificationService(notificationRepo, accountRepo, hub, log.Logger)
	authService := service.NewAuthService(accountRepo, tokens, cfg.OperatorSecret, log.Logger)
	loanService := service.NewLoanService(loanRepo, paymentRepo, auditRepo, notificationService, log.Logger)
	disbursementService := service.NewDisbursementService(
		loanRepo, installmentRepo, auditRepo, paymentProvider, notificationService, log.Logger)
	repaymentService := service.NewRepaymentService(
		loanRepo, installmentRepo, paymentRepo, auditRepo, paymentProvider, notificationService, log.Logger)
	refundService := service.NewRefundService(
		loanRepo, paymentRepo, auditRepo, paymentProvider, notificationService, log.Logger)
	creditService := service.NewCreditService(accountRepo, credit.NewRandomScorer(0), log.Logger)
	receiptService := service.NewReceiptService(receiptRepo, log.Logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	loanHandler := handler.NewLoanHandler(loanService, repaymentService)
	paymentHandler := handler.NewPaymentHandler(repaymentService, receiptService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	creditHandler := handler.NewCreditHandler(creditService)
	adminHandler := handler.NewAdminHandler(loanService, disbursementService, repaymentService, refundService)
	wsHandler := handler.NewWebSocketHandler(hub, tokens, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.IdempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheus metrics endpoint
	e.GET("/metrics", metrics.Handler())

	// Register API routes
	handler.RegisterRoutes(e,
		authMiddleware, idempotency, rateLimiter,
		authHandler, loanHandler, paymentHandler, notificationHandler,
		creditHandler, adminHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
