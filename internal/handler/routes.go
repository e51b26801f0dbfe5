package handler

import (
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	idempotency *middleware.Idempotency,
	rateLimiter *middleware.RateLimiter,
	authHandler *AuthHandler,
	loanHandler *LoanHandler,
	paymentHandler *PaymentHandler,
	notificationHandler *NotificationHandler,
	creditHandler *CreditHandler,
	adminHandler *AdminHandler,
	wsHandler *WebSocketHandler,
) {
	// API version 1
	api := e.Group("/api/v1")

	// Auth routes (register and login are public)
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", authHandler.Me, authMiddleware.Authenticate())

	// Loan routes (protected)
	loans := api.Group("/loans")
	loans.Use(authMiddleware.Authenticate(), rateLimiter.Middleware())
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.ListLoans)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.GET("/:id/history", loanHandler.GetHistory)
	loans.GET("/:id/schedule", loanHandler.GetSchedule)
	loans.GET("/:id/payments", loanHandler.GetPayments)
	loans.GET("/:id/disbursement", loanHandler.GetDisbursement)
	loans.POST("/:id/repay", loanHandler.Repay, idempotency.Require())

	// Payment routes (protected)
	payments := api.Group("/payments")
	payments.Use(authMiddleware.Authenticate(), rateLimiter.Middleware())
	payments.GET("", paymentHandler.ListPayments)
	payments.POST("/manual", paymentHandler.SubmitManualProof, idempotency.Require())
	payments.POST("/manual-with-receipt", paymentHandler.SubmitManualProofWithReceipt, idempotency.Require())

	// Notification routes (protected)
	notifications := api.Group("/notifications")
	notifications.Use(authMiddleware.Authenticate())
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PATCH("/:id/read", notificationHandler.MarkRead)
	notifications.PATCH("/read-all", notificationHandler.MarkAllRead)

	// Credit routes (protected)
	credit := api.Group("/credit")
	credit.Use(authMiddleware.Authenticate(), rateLimiter.Middleware())
	credit.GET("/report", creditHandler.Report)
	credit.POST("/check", creditHandler.Check)

	// Admin routes (operator only)
	admin := api.Group("/admin")
	admin.Use(authMiddleware.Authenticate(), authMiddleware.RequireOperator())
	admin.POST("/loans/:id/review", adminHandler.Review)
	admin.POST("/loans/:id/approve", adminHandler.Approve)
	admin.POST("/loans/:id/reject", adminHandler.Reject)
	admin.POST("/loans/:id/disburse", adminHandler.Disburse, idempotency.Require())
	admin.POST("/loans/:id/default", adminHandler.MarkDefaulted)
	admin.POST("/payments/:id/verify", adminHandler.VerifyPayment)
	admin.POST("/payments/:id/refund", adminHandler.Refund, idempotency.Require())
	admin.POST("/payments/:id/refund-overpayment", adminHandler.RefundOverpayment, idempotency.Require())

	// Notification live channel
	e.GET("/ws", wsHandler.HandleWS)

	// API documentation
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}
