package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAmountInvalid = errors.New("payment amount must be positive")
	ErrPaymentNotPending    = errors.New("payment is not pending verification")
	ErrPaymentNotSuccess    = errors.New("payment is not successful")
	ErrAlreadyRefunded      = errors.New("payment has already been refunded")
	ErrDuplicateReference   = errors.New("payment reference already exists")
	ErrDuplicateIdempotency = errors.New("idempotency key already used")
)

// PaymentType distinguishes money in from money out.
type PaymentType string

const (
	PaymentTypeRepayment PaymentType = "repayment"
	PaymentTypeRefund    PaymentType = "refund"
	PaymentTypeReversal  PaymentType = "reversal"
)

// PaymentStatus is the lifecycle of a single payment record.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Allocation records how a payment's amount was split. The sums equal the
// payment amount; overpayment is the portion that exceeded the outstanding
// balance and was never applied to the debt.
type Allocation struct {
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Overpayment decimal.Decimal `json:"overpayment"`
}

// InstallmentAllocation records one slice of a FIFO walk.
type InstallmentAllocation struct {
	InstallmentNumber int32           `json:"installmentNumber"`
	AmountApplied     decimal.Decimal `json:"amountApplied"`
}

// ManualProof is the evidence bundle for an out-of-band bank transfer.
type ManualProof struct {
	SenderBank        string    `json:"senderBank"`
	SenderName        string    `json:"senderName"`
	TransferDate      time.Time `json:"transferDate"`
	ExternalReference string    `json:"externalReference"`
	EvidenceURL       *string   `json:"evidenceUrl,omitempty"`
}

// Payment is a repayment, refund or reversal against a loan. IdempotencyKey
// and Reference are globally unique. A success payment is immutable except
// for the overpaymentRefunded flag and reconciliation fields.
type Payment struct {
	ID             int64         `json:"id"`
	LoanID         int64         `json:"loanId"`
	AccountID      uuid.UUID     `json:"accountId"`
	IdempotencyKey string        `json:"idempotencyKey"`
	Reference      string        `json:"reference"`
	Type           PaymentType   `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus `json:"status"`
	FailureReason  *string       `json:"failureReason,omitempty"`
	ProviderRef    *string       `json:"providerReference,omitempty"`

	Reconciled   bool       `json:"reconciled"`
	ReconciledAt *time.Time `json:"reconciledAt,omitempty"`

	Allocation  *Allocation  `json:"allocation,omitempty"`
	ManualProof *ManualProof `json:"manualProof,omitempty"`

	VerifiedBy *uuid.UUID `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`

	// RefundOfPaymentID links a refund back to its source payment.
	RefundOfPaymentID   *int64 `json:"refundOfPaymentId,omitempty"`
	OverpaymentRefunded bool   `json:"overpaymentRefunded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentRepository provides durable payment storage. Create enforces the
// unique constraints on idempotencyKey and reference, returning
// ErrDuplicateIdempotency / ErrDuplicateReference on collision.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) (*Payment, error)
	GetByID(ctx context.Context, id int64) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	ListByLoan(ctx context.Context, loanID int64) ([]*Payment, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*Payment, int64, error)
	// Update persists mutable payment fields (status, failure reason,
	// provider reference, allocation, verification, reconciliation).
	Update(ctx context.Context, payment *Payment) (*Payment, error)
	// MarkOverpaymentRefunded sets the flag only if it is currently unset,
	// returning ErrAlreadyRefunded otherwise.
	MarkOverpaymentRefunded(ctx context.Context, paymentID int64) error
	// GetRefundOf returns the refund payment whose source is sourcePaymentID,
	// or ErrPaymentNotFound when none exists.
	GetRefundOf(ctx context.Context, sourcePaymentID int64) (*Payment, error)
	// SumSuccessfulRefunds returns the total of success refunds that
	// restored debt on the loan (used by the invariant checks).
	SumSuccessfulRefunds(ctx context.Context, loanID int64) (decimal.Decimal, error)
}
