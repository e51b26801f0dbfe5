package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/service"
)

// LoanHandler handles borrower-facing loan requests
type LoanHandler struct {
	loanService      *service.LoanService
	repaymentService *service.RepaymentService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService, repaymentService *service.RepaymentService) *LoanHandler {
	return &LoanHandler{loanService: loanService, repaymentService: repaymentService}
}

// BankDetails represents a disbursement destination in request bodies
type BankDetails struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
	AccountName   string `json:"accountName"`
}

// CreateLoanRequest represents the create loan request body
type CreateLoanRequest struct {
	Purpose            string       `json:"purpose"`
	RequestedAmount    string       `json:"requestedAmount"`
	TenorMonths        int32        `json:"tenorMonths"`
	AnnualInterestRate string       `json:"annualInterestRate"`
	Bank               *BankDetails `json:"bank,omitempty"`
}

// RepayRequest represents the direct repayment request body
type RepayRequest struct {
	Amount string `json:"amount"`
}

// CreateLoan handles POST /api/v1/loans
// @Summary Submit a loan application
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLoanRequest true "Application details"
// @Success 201 {object} Response
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	amount, err := decimal.NewFromString(req.RequestedAmount)
	if err != nil {
		return BadRequest(c, "Invalid requested amount", ValidationError{
			Field: "requestedAmount", Message: "Must be a valid decimal number",
		})
	}
	rate, err := decimal.NewFromString(req.AnnualInterestRate)
	if err != nil {
		return BadRequest(c, "Invalid interest rate", ValidationError{
			Field: "annualInterestRate", Message: "Must be a valid decimal number",
		})
	}

	input := service.CreateLoanInput{
		Purpose:            req.Purpose,
		RequestedAmount:    amount,
		TenorMonths:        req.TenorMonths,
		AnnualInterestRate: rate,
	}
	if req.Bank != nil {
		input.Bank = &domain.BankDestination{
			AccountNumber: req.Bank.AccountNumber,
			BankCode:      req.Bank.BankCode,
			AccountName:   req.Bank.AccountName,
		}
	}

	loan, err := h.loanService.CreateLoan(c.Request().Context(), accountID, input)
	if err != nil {
		return DomainError(c, err)
	}
	return Created(c, "Loan application submitted", loan)
}

// ListLoans handles GET /api/v1/loans
// @Summary List the borrower's loans
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /loans [get]
func (h *LoanHandler) ListLoans(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	loans, err := h.loanService.ListLoans(c.Request().Context(), accountID)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Loans retrieved", loans)
}

// GetLoan handles GET /api/v1/loans/:id
// @Summary Get a loan
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c echo.Context) error {
	accountID, role, loanID, err := loanRequestContext(c)
	if err != nil {
		return err
	}

	loan, svcErr := h.loanService.GetLoan(c.Request().Context(), loanID, accountID, role)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Loan retrieved", loan)
}

// GetHistory handles GET /api/v1/loans/:id/history
// @Summary Get a loan's status history
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /loans/{id}/history [get]
func (h *LoanHandler) GetHistory(c echo.Context) error {
	accountID, role, loanID, err := loanRequestContext(c)
	if err != nil {
		return err
	}

	history, svcErr := h.loanService.GetHistory(c.Request().Context(), loanID, accountID, role)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "History retrieved", history)
}

// GetSchedule handles GET /api/v1/loans/:id/schedule
// @Summary Get a loan's repayment schedule
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /loans/{id}/schedule [get]
func (h *LoanHandler) GetSchedule(c echo.Context) error {
	accountID, role, loanID, err := loanRequestContext(c)
	if err != nil {
		return err
	}

	schedule, svcErr := h.repaymentService.GetSchedule(c.Request().Context(), loanID, accountID, role)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Schedule retrieved", schedule)
}

// GetPayments handles GET /api/v1/loans/:id/payments
// @Summary Get a loan's payments
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /loans/{id}/payments [get]
func (h *LoanHandler) GetPayments(c echo.Context) error {
	accountID, role, loanID, err := loanRequestContext(c)
	if err != nil {
		return err
	}

	payments, svcErr := h.loanService.GetPayments(c.Request().Context(), loanID, accountID, role)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Payments retrieved", payments)
}

// GetDisbursement handles GET /api/v1/loans/:id/disbursement
// @Summary Get a loan's disbursement record
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} Response
// @Router /loans/{id}/disbursement [get]
func (h *LoanHandler) GetDisbursement(c echo.Context) error {
	accountID, role, loanID, err := loanRequestContext(c)
	if err != nil {
		return err
	}

	disbursement, svcErr := h.loanService.GetDisbursement(c.Request().Context(), loanID, accountID, role)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Disbursement retrieved", disbursement)
}

// Repay handles POST /api/v1/loans/:id/repay
// @Summary Make a direct repayment
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body RepayRequest true "Repayment amount"
// @Success 200 {object} Response
// @Router /loans/{id}/repay [post]
func (h *LoanHandler) Repay(c echo.Context) error {
	accountID, _, loanID, err := loanRequestContext(c)
	if err != nil {
		return err
	}

	var req RepayRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return BadRequest(c, "Invalid amount", ValidationError{
			Field: "amount", Message: "Must be a valid decimal number",
		})
	}

	result, svcErr := h.repaymentService.ProcessRepayment(c.Request().Context(), accountID, service.RepaymentInput{
		LoanID:         loanID,
		Amount:         amount,
		IdempotencyKey: c.Request().Header.Get(middleware.IdempotencyKeyHeader),
	})
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return OK(c, "Repayment processed", result)
}

// loanRequestContext extracts the authenticated account, role and loan ID
// from the request. The returned error, when non-nil, is the already
// written response.
func loanRequestContext(c echo.Context) (uuid.UUID, domain.Role, int64, error) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return uuid.Nil, "", 0, Fail(c, http.StatusUnauthorized, "Authentication required")
	}
	role, _ := c.Get(middleware.RoleKey).(domain.Role)

	loanID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return accountID, role, 0, BadRequest(c, "Invalid loan ID")
	}
	return accountID, role, loanID, nil
}
