package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
)

// LoanService owns the loan state machine: application intake, operator
// review decisions and the derived monetary figures.
type LoanService struct {
	loanRepo     domain.LoanRepository
	paymentRepo  domain.PaymentRepository
	auditRepo    domain.AuditRepository
	notification *NotificationService
	logger       zerolog.Logger
}

// NewLoanService creates a new LoanService
func NewLoanService(
	loanRepo domain.LoanRepository,
	paymentRepo domain.PaymentRepository,
	auditRepo domain.AuditRepository,
	notification *NotificationService,
	logger zerolog.Logger,
) *LoanService {
	return &LoanService{
		loanRepo:     loanRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		notification: notification,
		logger:       logger.With().Str("service", "loan").Logger(),
	}
}

// CreateLoanInput contains input for submitting a loan application
type CreateLoanInput struct {
	Purpose            string
	RequestedAmount    decimal.Decimal
	TenorMonths        int32
	AnnualInterestRate decimal.Decimal
	Bank               *domain.BankDestination
}

// CreateLoan submits a loan application. An account may hold at most one
// loan in an open status; violation fails with ErrActiveLoanExists.
func (s *LoanService) CreateLoan(ctx context.Context, borrowerID uuid.UUID, input CreateLoanInput) (*domain.Loan, error) {
	loan := &domain.Loan{
		ApplicationNumber:  newApplicationNumber(time.Now()),
		BorrowerID:         borrowerID,
		Purpose:            strings.TrimSpace(input.Purpose),
		AnnualInterestRate: input.AnnualInterestRate,
		RequestedAmount:    input.RequestedAmount,
		TenorMonths:        input.TenorMonths,
		Status:             domain.LoanStatusPending,
		Bank:               input.Bank,
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	if input.AnnualInterestRate.IsNegative() {
		return nil, domain.ErrInvalidInput
	}

	open, err := s.loanRepo.CountOpenByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, domain.ErrActiveLoanExists
	}

	loan.DeriveFigures(input.RequestedAmount)

	created, err := s.loanRepo.Create(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, created.ID, domain.AuditActionLoanCreated, borrowerID, nil, created)
	s.notification.Notify(ctx, borrowerID, domain.NotificationLoanSubmitted,
		"Loan application submitted",
		fmt.Sprintf("Application %s for %s has been received.", created.ApplicationNumber, created.RequestedAmount.StringFixed(2)),
		snapshot(map[string]any{"loanId": created.ID, "applicationNumber": created.ApplicationNumber}))
	s.notification.NotifyOperators(ctx, domain.NotificationLoanSubmitted,
		"New loan application",
		fmt.Sprintf("Application %s is awaiting review.", created.ApplicationNumber),
		snapshot(map[string]any{"loanId": created.ID}))

	s.logger.Info().
		Int64("loan_id", created.ID).
		Str("application_number", created.ApplicationNumber).
		Str("borrower_id", borrowerID.String()).
		Msg("Loan application created")

	return created, nil
}

// Review moves a pending application into review.
func (s *LoanService) Review(ctx context.Context, loanID int64, operatorID uuid.UUID) (*domain.Loan, error) {
	return s.transition(ctx, loanID, operatorID, domain.LoanStatusUnderReview, nil, func(loan *domain.Loan) error {
		return nil
	})
}

// ApproveInput contains the operator's approval decision.
type ApproveInput struct {
	Amount     *decimal.Decimal // nil means approve the requested amount
	Conditions *string
}

// Approve approves an application, optionally at a reduced amount. A
// reduced amount re-derives all monetary figures inside the same versioned
// update that persists the transition.
func (s *LoanService) Approve(ctx context.Context, loanID int64, operatorID uuid.UUID, input ApproveInput) (*domain.Loan, error) {
	return s.transition(ctx, loanID, operatorID, domain.LoanStatusApproved, nil, func(loan *domain.Loan) error {
		amount := loan.RequestedAmount
		if input.Amount != nil {
			amount = *input.Amount
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return domain.ErrLoanAmountInvalid
		}
		if amount.GreaterThan(loan.RequestedAmount) {
			return domain.ErrApprovalAmountTooBig
		}

		loan.DeriveFigures(amount)
		loan.Approval = &domain.Approval{
			ApprovedBy:     operatorID,
			ApprovedAmount: amount,
			Conditions:     input.Conditions,
			ApprovedAt:     time.Now(),
		}
		return nil
	})
}

// Reject rejects an application with a reason. rejected is terminal.
func (s *LoanService) Reject(ctx context.Context, loanID int64, operatorID uuid.UUID, reason string) (*domain.Loan, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.transition(ctx, loanID, operatorID, domain.LoanStatusRejected, &reason, func(loan *domain.Loan) error {
		loan.Rejection = &domain.Rejection{
			RejectedBy: operatorID,
			Reason:     reason,
			RejectedAt: time.Now(),
		}
		return nil
	})
}

// MarkDefaulted transitions an active loan to defaulted. There is no
// automatic overdue sweep; defaulting is an operator decision.
func (s *LoanService) MarkDefaulted(ctx context.Context, loanID int64, operatorID uuid.UUID, reason string) (*domain.Loan, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.transition(ctx, loanID, operatorID, domain.LoanStatusDefaulted, &reason, func(loan *domain.Loan) error {
		return nil
	})
}

// transition applies a state machine edge under the loan's version CAS:
// mutate runs against the loaded loan before the conditional write, so its
// changes land atomically with the status change.
func (s *LoanService) transition(ctx context.Context, loanID int64, operatorID uuid.UUID, to domain.LoanStatus, reason *string, mutate func(*domain.Loan) error) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	from := loan.Status
	if !domain.CanTransition(from, to) {
		return nil, domain.InvalidTransitionError{From: from, To: to}
	}

	before := snapshot(loan)
	if err := mutate(loan); err != nil {
		return nil, err
	}
	loan.Status = to

	updated, err := s.loanRepo.UpdateCAS(ctx, loan, loan.Version)
	if err != nil {
		return nil, err
	}

	change := domain.StatusChange{
		From:        from,
		To:          to,
		Reason:      reason,
		PerformedBy: operatorID,
		ChangedAt:   time.Now(),
	}
	if err := s.loanRepo.AppendStatusHistory(ctx, loanID, change); err != nil {
		s.logger.Error().Err(err).Int64("loan_id", loanID).Msg("Failed to append status history")
	}

	s.audit(ctx, loanID, auditActionFor(to), operatorID, before, updated)
	s.notifyTransition(ctx, updated, to, reason)

	s.logger.Info().
		Int64("loan_id", loanID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("operator_id", operatorID.String()).
		Msg("Loan transitioned")

	return updated, nil
}

func auditActionFor(to domain.LoanStatus) string {
	switch to {
	case domain.LoanStatusUnderReview:
		return domain.AuditActionLoanReviewed
	case domain.LoanStatusApproved:
		return domain.AuditActionLoanApproved
	case domain.LoanStatusRejected:
		return domain.AuditActionLoanRejected
	case domain.LoanStatusDefaulted:
		return domain.AuditActionLoanDefaulted
	case domain.LoanStatusCompleted:
		return domain.AuditActionLoanCompleted
	default:
		return domain.AuditActionLoanDisbursed
	}
}

func (s *LoanService) notifyTransition(ctx context.Context, loan *domain.Loan, to domain.LoanStatus, reason *string) {
	var notifType, title, body string
	switch to {
	case domain.LoanStatusUnderReview:
		notifType = domain.NotificationLoanUnderReview
		title = "Application under review"
		body = fmt.Sprintf("Application %s is now under review.", loan.ApplicationNumber)
	case domain.LoanStatusApproved:
		notifType = domain.NotificationLoanApproved
		title = "Loan approved"
		body = fmt.Sprintf("Application %s was approved for %s.", loan.ApplicationNumber, loan.Principal.StringFixed(2))
	case domain.LoanStatusRejected:
		notifType = domain.NotificationLoanRejected
		title = "Loan rejected"
		body = fmt.Sprintf("Application %s was rejected.", loan.ApplicationNumber)
		if reason != nil {
			body = fmt.Sprintf("Application %s was rejected: %s", loan.ApplicationNumber, *reason)
		}
	case domain.LoanStatusDefaulted:
		notifType = domain.NotificationLoanDefaulted
		title = "Loan marked defaulted"
		body = fmt.Sprintf("Loan %s has been marked as defaulted.", loan.ApplicationNumber)
	default:
		return
	}
	s.notification.Notify(ctx, loan.BorrowerID, notifType, title, body,
		snapshot(map[string]any{"loanId": loan.ID, "status": loan.Status}))
}

func (s *LoanService) audit(ctx context.Context, loanID int64, action string, actor uuid.UUID, previous json.RawMessage, next any) {
	entry := &domain.AuditEntry{
		EntityType: "loan",
		EntityID:   fmt.Sprintf("%d", loanID),
		Action:     action,
		Actor:      actor,
		Previous:   previous,
	}
	if next != nil {
		entry.Next = snapshot(next)
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Int64("loan_id", loanID).Str("action", action).Msg("Failed to append audit entry")
	}
}

// GetLoan returns a loan, enforcing borrower ownership for non-operators.
func (s *LoanService) GetLoan(ctx context.Context, loanID int64, accountID uuid.UUID, role domain.Role) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleOperator && !loan.IsOwnedBy(accountID) {
		return nil, domain.ErrLoanNotFound
	}
	return loan, nil
}

// ListLoans returns the borrower's loans.
func (s *LoanService) ListLoans(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error) {
	return s.loanRepo.ListByBorrower(ctx, borrowerID)
}

// GetHistory returns a loan's status history.
func (s *LoanService) GetHistory(ctx context.Context, loanID int64, accountID uuid.UUID, role domain.Role) ([]domain.StatusChange, error) {
	if _, err := s.GetLoan(ctx, loanID, accountID, role); err != nil {
		return nil, err
	}
	return s.loanRepo.GetStatusHistory(ctx, loanID)
}

// GetPayments returns a loan's payments.
func (s *LoanService) GetPayments(ctx context.Context, loanID int64, accountID uuid.UUID, role domain.Role) ([]*domain.Payment, error) {
	if _, err := s.GetLoan(ctx, loanID, accountID, role); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListByLoan(ctx, loanID)
}

// GetDisbursement returns a loan's disbursement record, if any.
func (s *LoanService) GetDisbursement(ctx context.Context, loanID int64, accountID uuid.UUID, role domain.Role) (*domain.Disbursement, error) {
	loan, err := s.GetLoan(ctx, loanID, accountID, role)
	if err != nil {
		return nil, err
	}
	if loan.Disbursement == nil {
		return nil, domain.ErrNotFound
	}
	return loan.Disbursement, nil
}
