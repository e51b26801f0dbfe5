package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/service"
)

// CreditHandler handles advisory credit requests
type CreditHandler struct {
	creditService *service.CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(creditService *service.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// Report handles GET /api/v1/credit/report
// @Summary Get the account's last credit report
// @Tags credit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /credit/report [get]
func (h *CreditHandler) Report(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	report, err := h.creditService.Report(c.Request().Context(), accountID)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Credit report retrieved", report)
}

// Check handles POST /api/v1/credit/check
// @Summary Run an advisory credit check
// @Tags credit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /credit/check [post]
func (h *CreditHandler) Check(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	report, err := h.creditService.Check(c.Request().Context(), accountID)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Credit check completed", report)
}
