package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Role distinguishes borrowers from operators. Operators may transition
// loans and verify manual repayment proofs.
type Role string

const (
	RoleBorrower Role = "borrower"
	RoleOperator Role = "operator"
)

// Account is a borrower or operator identity.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	// NationalID is stored encrypted; the engine treats it as opaque.
	NationalID  *string   `json:"-"`
	IDVerified  bool      `json:"idVerified"`
	CreditScore *int32    `json:"creditScore,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AccountRepository provides durable account storage.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	ListByRole(ctx context.Context, role Role) ([]*Account, error)
	UpdateCreditScore(ctx context.Context, id uuid.UUID, score int32) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
