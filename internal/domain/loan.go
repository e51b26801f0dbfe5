package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanNotOwned         = errors.New("loan does not belong to this account")
	ErrLoanNotActive        = errors.New("loan is not active")
	ErrActiveLoanExists     = errors.New("account already has an open loan")
	ErrAlreadyDisbursed     = errors.New("loan has already been disbursed")
	ErrMissingBankDetails   = errors.New("loan has no bank destination for disbursement")
	ErrLoanAmountInvalid    = errors.New("loan amount must be positive")
	ErrLoanTenorInvalid     = errors.New("tenor must be between 1 and 60 months")
	ErrLoanPurposeEmpty     = errors.New("loan purpose is required")
	ErrApprovalAmountTooBig = errors.New("approved amount exceeds requested amount")
)

// LoanStatus is a node in the loan state machine.
type LoanStatus string

const (
	LoanStatusPending     LoanStatus = "pending"
	LoanStatusUnderReview LoanStatus = "under_review"
	LoanStatusApproved    LoanStatus = "approved"
	LoanStatusRejected    LoanStatus = "rejected"
	LoanStatusDisbursed   LoanStatus = "disbursed"
	LoanStatusActive      LoanStatus = "active"
	LoanStatusCompleted   LoanStatus = "completed"
	LoanStatusDefaulted   LoanStatus = "defaulted"
)

// legalTransitions is the full set of edges in the state machine.
// rejected, completed and defaulted are terminal.
var legalTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:     {LoanStatusUnderReview},
	LoanStatusUnderReview: {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved:    {LoanStatusDisbursed},
	LoanStatusDisbursed:   {LoanStatusActive, LoanStatusApproved},
	LoanStatusActive:      {LoanStatusCompleted, LoanStatusDefaulted},
}

// CanTransition reports whether from -> to is a legal edge.
// disbursed -> approved is the compensation edge used when an external
// transfer fails after the local reservation.
func CanTransition(from, to LoanStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an illegal state machine edge.
type InvalidTransitionError struct {
	From LoanStatus
	To   LoanStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid loan transition %s -> %s", e.From, e.To)
}

// OpenStatuses are the statuses that count against the single-active-loan
// rule. disbursed collapses to active as soon as the transfer commits, so it
// is covered by the disbursed entry here for the brief window it exists.
var OpenStatuses = []LoanStatus{
	LoanStatusPending,
	LoanStatusUnderReview,
	LoanStatusApproved,
	LoanStatusDisbursed,
	LoanStatusActive,
}

// StatusChange is one append-only entry in a loan's status history.
type StatusChange struct {
	From        LoanStatus `json:"from"`
	To          LoanStatus `json:"to"`
	Reason      *string    `json:"reason,omitempty"`
	PerformedBy uuid.UUID  `json:"performedBy"`
	ChangedAt   time.Time  `json:"changedAt"`
}

// Approval records an operator approval, possibly for a reduced amount.
type Approval struct {
	ApprovedBy     uuid.UUID       `json:"approvedBy"`
	ApprovedAmount decimal.Decimal `json:"approvedAmount"`
	Conditions     *string         `json:"conditions,omitempty"`
	ApprovedAt     time.Time       `json:"approvedAt"`
}

// Rejection records an operator rejection.
type Rejection struct {
	RejectedBy uuid.UUID `json:"rejectedBy"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejectedAt"`
}

// BankDestination is where a disbursement transfer is sent.
type BankDestination struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
	AccountName   string `json:"accountName"`
}

// Disbursement records the reservation and outcome of the transfer protocol.
type Disbursement struct {
	Reference         string     `json:"reference"`
	ProviderReference *string    `json:"providerReference,omitempty"`
	Bank              BankDestination `json:"bank"`
	DisbursedBy       uuid.UUID  `json:"disbursedBy"`
	DisbursedAt       *time.Time `json:"disbursedAt,omitempty"`
}

// Loan is the aggregate at the center of the engine. ApplicationNumber,
// BorrowerID, Purpose, AnnualInterestRate, RequestedAmount and TenorMonths
// are immutable after creation. Version is the compare-and-set key; every
// balance-affecting update must go through the versioned conditional write.
type Loan struct {
	ID                 int64           `json:"id"`
	ApplicationNumber  string          `json:"applicationNumber"`
	BorrowerID         uuid.UUID       `json:"borrowerId"`
	Purpose            string          `json:"purpose"`
	AnnualInterestRate decimal.Decimal `json:"annualInterestRate"`
	RequestedAmount    decimal.Decimal `json:"requestedAmount"`
	TenorMonths        int32           `json:"tenorMonths"`

	Status             LoanStatus      `json:"status"`
	Principal          decimal.Decimal `json:"principal"`
	TotalInterest      decimal.Decimal `json:"totalInterest"`
	TotalRepayable     decimal.Decimal `json:"totalRepayable"`
	MonthlyPayment     decimal.Decimal `json:"monthlyPayment"`
	TotalRepaid        decimal.Decimal `json:"totalRepaid"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	Version            int64           `json:"version"`

	Approval     *Approval     `json:"approval,omitempty"`
	Rejection    *Rejection    `json:"rejection,omitempty"`
	Bank         *BankDestination `json:"bank,omitempty"`
	Disbursement *Disbursement `json:"disbursement,omitempty"`

	StatusHistory []StatusChange `json:"statusHistory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the immutable fields set at application time.
func (l *Loan) Validate() error {
	if l.Purpose == "" {
		return ErrLoanPurposeEmpty
	}
	if l.RequestedAmount.LessThanOrEqual(decimal.Zero) {
		return ErrLoanAmountInvalid
	}
	if l.TenorMonths < 1 || l.TenorMonths > 60 {
		return ErrLoanTenorInvalid
	}
	return nil
}

// DeriveFigures computes interest and repayment figures from a principal.
// totalInterest = round2(principal * rate * tenor/12); the loan starts with
// nothing repaid and the full repayable amount outstanding.
func (l *Loan) DeriveFigures(principal decimal.Decimal) {
	months := decimal.NewFromInt32(l.TenorMonths)
	l.Principal = principal
	l.TotalInterest = Round2(principal.Mul(l.AnnualInterestRate).Mul(months).Div(decimal.NewFromInt(12)))
	l.TotalRepayable = Round2(principal.Add(l.TotalInterest))
	l.MonthlyPayment = Round2(l.TotalRepayable.Div(months))
	l.TotalRepaid = decimal.Zero
	l.OutstandingBalance = l.TotalRepayable
}

// IsOwnedBy reports whether the loan belongs to the given account.
func (l *Loan) IsOwnedBy(accountID uuid.UUID) bool {
	return l.BorrowerID == accountID
}

// LoanRepository provides durable loan storage with compare-and-set updates.
type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id int64) (*Loan, error)
	GetByApplicationNumber(ctx context.Context, number string) (*Loan, error)
	ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*Loan, error)
	// CountOpenByBorrower counts loans in OpenStatuses, enforcing the
	// single-active-loan rule at creation time.
	CountOpenByBorrower(ctx context.Context, borrowerID uuid.UUID) (int64, error)
	// UpdateCAS persists the loan's mutable fields only if the stored version
	// equals expectedVersion, incrementing the version atomically. Returns
	// ErrVersionConflict when the condition fails against a live row and
	// ErrLoanNotFound when the row does not exist.
	UpdateCAS(ctx context.Context, loan *Loan, expectedVersion int64) (*Loan, error)
	AppendStatusHistory(ctx context.Context, loanID int64, change StatusChange) error
	GetStatusHistory(ctx context.Context, loanID int64) ([]StatusChange, error)
}
