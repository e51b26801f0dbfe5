package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Notification types emitted by the engine.
const (
	NotificationLoanSubmitted   = "LOAN_SUBMITTED"
	NotificationLoanUnderReview = "LOAN_UNDER_REVIEW"
	NotificationLoanApproved    = "LOAN_APPROVED"
	NotificationLoanRejected    = "LOAN_REJECTED"
	NotificationLoanDisbursed   = "LOAN_DISBURSED"
	NotificationLoanCompleted   = "LOAN_COMPLETED"
	NotificationLoanDefaulted   = "LOAN_DEFAULTED"
	NotificationPaymentReceived = "PAYMENT_RECEIVED"
	NotificationPaymentFailed   = "PAYMENT_FAILED"
	NotificationProofSubmitted  = "PROOF_SUBMITTED"
	NotificationRefundProcessed = "REFUND_PROCESSED"
)

// NotificationStatus is the delivery status of a persisted notification.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is a durable message for an account. It is persisted before
// any live push so offline subscribers can read the history on reconnect.
type Notification struct {
	ID        int64              `json:"id"`
	AccountID uuid.UUID          `json:"accountId"`
	Type      string             `json:"type"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Data      json.RawMessage    `json:"data,omitempty"`
	Status    NotificationStatus `json:"status"`
	SentAt    *time.Time         `json:"sentAt,omitempty"`
	ReadAt    *time.Time         `json:"readAt,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// NotificationRepository stores notifications indexed by
// (accountId, createdAt desc) and (accountId, readAt is null).
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*Notification, int64, error)
	CountUnread(ctx context.Context, accountID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id int64, accountID uuid.UUID) (*Notification, error)
	MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error)
}
