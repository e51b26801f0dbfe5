package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/service"
)

// PaymentHandler handles borrower-facing payment requests
type PaymentHandler struct {
	repaymentService *service.RepaymentService
	receiptService   *service.ReceiptService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(repaymentService *service.RepaymentService, receiptService *service.ReceiptService) *PaymentHandler {
	return &PaymentHandler{repaymentService: repaymentService, receiptService: receiptService}
}

// ManualProofRequest represents the manual proof submission body
type ManualProofRequest struct {
	LoanID            int64  `json:"loanId"`
	Amount            string `json:"amount"`
	SenderBank        string `json:"senderBank"`
	SenderName        string `json:"senderName"`
	TransferDate      string `json:"transferDate"`
	ExternalReference string `json:"externalReference"`
}

// SubmitManualProof handles POST /api/v1/payments/manual
// @Summary Submit manual transfer proof
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body ManualProofRequest true "Proof details"
// @Success 201 {object} Response
// @Router /payments/manual [post]
func (h *PaymentHandler) SubmitManualProof(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	var req ManualProofRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	input, err := h.parseProof(c, req, nil)
	if err != nil {
		return err
	}

	payment, svcErr := h.repaymentService.SubmitManualProof(c.Request().Context(), accountID, *input)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return Created(c, "Proof submitted for verification", payment)
}

// SubmitManualProofWithReceipt handles POST /api/v1/payments/manual-with-receipt
// @Summary Submit manual transfer proof with a receipt image
// @Tags payments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key"
// @Param receipt formData file true "Receipt image (JPEG or PNG)"
// @Success 201 {object} Response
// @Router /payments/manual-with-receipt [post]
func (h *PaymentHandler) SubmitManualProofWithReceipt(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	loanID, err := strconv.ParseInt(c.FormValue("loanId"), 10, 64)
	if err != nil {
		return BadRequest(c, "Invalid loan ID")
	}
	req := ManualProofRequest{
		LoanID:            loanID,
		Amount:            c.FormValue("amount"),
		SenderBank:        c.FormValue("senderBank"),
		SenderName:        c.FormValue("senderName"),
		TransferDate:      c.FormValue("transferDate"),
		ExternalReference: c.FormValue("externalReference"),
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		return BadRequest(c, "Receipt image is required", ValidationError{
			Field: "receipt", Message: "Must be a JPEG or PNG file",
		})
	}

	url, upErr := h.receiptService.Upload(c.Request().Context(), accountID, loanID, file)
	if upErr != nil {
		switch upErr {
		case service.ErrReceiptTooLarge, service.ErrReceiptInvalidType:
			return BadRequest(c, upErr.Error())
		default:
			return DomainError(c, upErr)
		}
	}

	input, respErr := h.parseProof(c, req, &url)
	if respErr != nil {
		return respErr
	}

	payment, svcErr := h.repaymentService.SubmitManualProof(c.Request().Context(), accountID, *input)
	if svcErr != nil {
		return DomainError(c, svcErr)
	}
	return Created(c, "Proof submitted for verification", payment)
}

// ListPayments handles GET /api/v1/payments
// @Summary List the account's payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} Response
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c echo.Context) error {
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

	payments, total, err := h.repaymentService.ListPayments(c.Request().Context(), accountID, page, limit)
	if err != nil {
		return DomainError(c, err)
	}
	return OKPaged(c, "Payments retrieved", payments, NewMeta(page, limit, total))
}

func (h *PaymentHandler) parseProof(c echo.Context, req ManualProofRequest, evidenceURL *string) (*service.ManualProofInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, BadRequest(c, "Invalid amount", ValidationError{
			Field: "amount", Message: "Must be a valid decimal number",
		})
	}
	transferDate, err := time.Parse("2006-01-02", req.TransferDate)
	if err != nil {
		return nil, BadRequest(c, "Invalid transfer date", ValidationError{
			Field: "transferDate", Message: "Must be in YYYY-MM-DD format",
		})
	}

	return &service.ManualProofInput{
		LoanID:            req.LoanID,
		Amount:            amount,
		IdempotencyKey:    c.Request().Header.Get(middleware.IdempotencyKeyHeader),
		SenderBank:        req.SenderBank,
		SenderName:        req.SenderName,
		TransferDate:      transferDate,
		ExternalReference: req.ExternalReference,
		EvidenceURL:       evidenceURL,
	}, nil
}
