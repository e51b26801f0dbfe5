package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the engine.
const (
	AuditActionLoanCreated        = "LOAN_CREATED"
	AuditActionLoanReviewed       = "LOAN_REVIEWED"
	AuditActionLoanApproved       = "LOAN_APPROVED"
	AuditActionLoanRejected       = "LOAN_REJECTED"
	AuditActionLoanDisbursed      = "LOAN_DISBURSED"
	AuditActionLoanDefaulted      = "LOAN_DEFAULTED"
	AuditActionLoanCompleted      = "LOAN_COMPLETED"
	AuditActionDisburseReverted   = "DISBURSEMENT_REVERTED"
	AuditActionRepaymentProcessed = "REPAYMENT_PROCESSED"
	AuditActionProofSubmitted     = "MANUAL_PROOF_SUBMITTED"
	AuditActionProofVerified      = "MANUAL_PROOF_VERIFIED"
	AuditActionProofRejected      = "MANUAL_PROOF_REJECTED"
	AuditActionRefundProcessed    = "REFUND_PROCESSED"
)

// AuditEntry is one append-only record of a state-changing action with
// before/after snapshots. Entries are never edited.
type AuditEntry struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     string          `json:"action"`
	Actor      uuid.UUID       `json:"actor"`
	Previous   json.RawMessage `json:"previous,omitempty"`
	Next       json.RawMessage `json:"next,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*AuditEntry, error)
}
