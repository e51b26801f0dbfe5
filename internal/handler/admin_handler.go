package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/service"
)

// AdminHandler handles operator actions: review decisions, disbursement,
// manual-proof verification and refunds
type AdminHandler struct {
	loanService         *service.LoanService
	disbursementService *service.DisbursementService
	repaymentService    *service.RepaymentService
	refundService       *service.RefundService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	loanService *service.LoanService,
	disbursementService *service.DisbursementService,
	repaymentService *service.RepaymentService,
	refundService *service.RefundService,
) *AdminHandler {
	return &AdminHandler{
		loanService:         loanService,
		disbursementService: disbursementService,
		repaymentService:    repaymentService,
		refundService:       refundService,
	}
}

// ApproveRequest represents the approve request body
type ApproveRequest struct {
	Amount     *string `json:"amount,omitempty"` // omit to approve the requested amount
	Conditions *string `json:"conditions,omitempty"`
}

// ReasonRequest represents a request body carrying only a reason
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// VerifyRequest represents the manual-proof verification body
type VerifyRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// Review handles POST /api/v1/admin/loans/:id/review
// @Summary Move a pending application into review
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /admin/loans/{id}/review [post]
func (h *AdminHandler) Review(c echo.Context) error {
	operatorID, loanID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	loan, svcErr := h.loanService.Review(c.Request().Context(), loanID, operatorID)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Loan moved to review", loan)
}

// Approve handles POST /api/v1/admin/loans/:id/approve
// @Summary Approve an application, optionally at a reduced amount
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body ApproveRequest false "Approval details"
// @Success 200 {object} Response
// @Router /admin/loans/{id}/approve [post]
func (h *AdminHandler) Approve(c echo.Context) error {
	operatorID, loanID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	input := service.ApproveInput{Conditions: req.Conditions}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return BadRequest(c, "Invalid amount", ValidationError{
				Field: "amount", Message: "Must be a valid decimal number",
			})
		}
		input.Amount = &amount
	}

	loan, svcErr := h.loanService.Approve(c.Request().Context(), loanID, operatorID, input)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Loan approved", loan)
}

// Reject handles POST /api/v1/admin/loans/:id/reject
// @Summary Reject an application with a reason
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body ReasonRequest true "Rejection reason"
// @Success 200 {object} Response
// @Router /admin/loans/{id}/reject [post]
func (h *AdminHandler) Reject(c echo.Context) error {
	operatorID, loanID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	loan, svcErr := h.loanService.Reject(c.Request().Context(), loanID, operatorID, req.Reason)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Loan rejected", loan)
}

// Disburse handles POST /api/v1/admin/loans/:id/disburse
// @Summary Disburse an approved loan
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /admin/loans/{id}/disburse [post]
func (h *AdminHandler) Disburse(c echo.Context) error {
	operatorID, loanID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	loan, svcErr := h.disbursementService.Disburse(c.Request().Context(), loanID, operatorID)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Loan disbursed", loan)
}

// MarkDefaulted handles POST /api/v1/admin/loans/:id/default
// @Summary Mark an active loan defaulted
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body ReasonRequest true "Default reason"
// @Success 200 {object} Response
// @Router /admin/loans/{id}/default [post]
func (h *AdminHandler) MarkDefaulted(c echo.Context) error {
	operatorID, loanID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	loan, svcErr := h.loanService.MarkDefaulted(c.Request().Context(), loanID, operatorID, req.Reason)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Loan marked defaulted", loan)
}

// VerifyPayment handles POST /api/v1/admin/payments/:id/verify
// @Summary Verify or reject a manual-proof payment
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param request body VerifyRequest true "Verification decision"
// @Success 200 {object} Response
// @Router /admin/payments/{id}/verify [post]
func (h *AdminHandler) VerifyPayment(c echo.Context) error {
	operatorID, paymentID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	ctx := c.Request().Context()
	if !req.Approve {
		payment, svcErr := h.repaymentService.RejectProof(ctx, paymentID, operatorID, req.Reason)
		if svcErr != nil {
			return DomainError(c, svcErr)
		}
		return OK(c, "Proof rejected", payment)
	}

	result, svcErr := h.repaymentService.VerifyRepayment(ctx, paymentID, operatorID)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Payment verified and settled", result)
}

// Refund handles POST /api/v1/admin/payments/:id/refund
// @Summary Refund a successful payment in full
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param request body ReasonRequest true "Refund reason"
// @Success 200 {object} Response
// @Router /admin/payments/{id}/refund [post]
func (h *AdminHandler) Refund(c echo.Context) error {
	operatorID, paymentID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	var req ReasonRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	refund, svcErr := h.refundService.RefundPayment(c.Request().Context(), paymentID, operatorID, req.Reason)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Refund processed", refund)
}

// RefundOverpayment handles POST /api/v1/admin/payments/:id/refund-overpayment
// @Summary Refund a payment's overpayment slice
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} Response
// @Router /admin/payments/{id}/refund-overpayment [post]
func (h *AdminHandler) RefundOverpayment(c echo.Context) error {
	operatorID, paymentID, err := h.operatorContext(c)
	if err != nil {
		return err
	}

	refund, svcErr := h.refundService.RefundOverpayment(c.Request().Context(), paymentID, operatorID)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Overpayment refunded", refund)
}

func (h *AdminHandler) operatorContext(c echo.Context) (uuid.UUID, int64, error) {
	operatorID, ok := middleware.AccountID(c)
	if !ok {
		return uuid.Nil, 0, Fail(c, http.StatusUnauthorized, "Authentication required")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return operatorID, 0, BadRequest(c, "Invalid ID")
	}
	return operatorID, id, nil
}
