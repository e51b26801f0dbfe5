package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/service"
)

// NotificationHandler handles notification feed requests
type NotificationHandler struct {
	notificationService *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List handles GET /api/v1/notifications
// @Summary List the account's notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} Response
// @Router /notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	notifications, total, err := h.notificationService.List(c.Request().Context(), accountID, page, limit)
	if err != nil {
		return DomainError(c, err)
	}
	return OKPaged(c, "Notifications retrieved", notifications, NewMeta(page, limit, total))
}

// UnreadCount handles GET /api/v1/notifications/unread-count
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	count, err := h.notificationService.UnreadCount(c.Request().Context(), accountID)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Unread count retrieved", map[string]int64{"count": count})
}

// MarkRead handles PATCH /api/v1/notifications/:id/read
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} Response
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return BadRequest(c, "Invalid notification ID")
	}

	notification, svcErr := h.notificationService.MarkRead(c.Request().Context(), id, accountID)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Notification marked read", notification)
}

// MarkAllRead handles PATCH /api/v1/notifications/read-all
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /notifications/read-all [patch]
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	count, err := h.notificationService.MarkAllRead(c.Request().Context(), accountID)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Notifications marked read", map[string]int64{"updated": count})
}
