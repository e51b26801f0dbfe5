package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/metrics"
	"github.com/kredia/kredia-backend/internal/provider"
)

const balanceRetryLimit = 3

// RepaymentService runs the repayment engine: idempotent intake, the
// provider debit, FIFO allocation across installments and the versioned
// balance update that may complete the loan.
type RepaymentService struct {
	loanRepo        domain.LoanRepository
	installmentRepo domain.InstallmentRepository
	paymentRepo     domain.PaymentRepository
	auditRepo       domain.AuditRepository
	provider        provider.Provider
	notification    *NotificationService
	logger          zerolog.Logger
}

// NewRepaymentService creates a new RepaymentService
func NewRepaymentService(
	loanRepo domain.LoanRepository,
	installmentRepo domain.InstallmentRepository,
	paymentRepo domain.PaymentRepository,
	auditRepo domain.AuditRepository,
	paymentProvider provider.Provider,
	notification *NotificationService,
	logger zerolog.Logger,
) *RepaymentService {
	return &RepaymentService{
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
		paymentRepo:     paymentRepo,
		auditRepo:       auditRepo,
		provider:        paymentProvider,
		notification:    notification,
		logger:          logger.With().Str("service", "repayment").Logger(),
	}
}

// RepaymentResult is the outcome of a processed repayment.
type RepaymentResult struct {
	Payment     *domain.Payment                `json:"payment"`
	Loan        *domain.Loan                   `json:"loan"`
	Allocations []domain.InstallmentAllocation `json:"allocations"`
	Overpayment decimal.Decimal                `json:"overpayment"`
	Completed   bool                           `json:"completed"`
	Replayed    bool                           `json:"replayed"`
}

// RepaymentInput is a repayment request against an active loan.
type RepaymentInput struct {
	LoanID         int64
	Amount         decimal.Decimal
	IdempotencyKey string
}

// ProcessRepayment applies a repayment to an active loan. Retries carrying
// the same idempotency key replay the stored outcome instead of moving
// money twice.
func (s *RepaymentService) ProcessRepayment(ctx context.Context, accountID uuid.UUID, input RepaymentInput) (*RepaymentResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return nil, domain.ErrInvalidInput
	}

	// Idempotency gate first: a prior attempt with the same key decides the
	// outcome before any loan-state check, so a retry whose first attempt
	// completed the loan still replays the success instead of erroring.
	if existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		loan, lerr := s.loanRepo.GetByID(ctx, existing.LoanID)
		if lerr != nil {
			return nil, lerr
		}
		if !loan.IsOwnedBy(accountID) {
			return nil, domain.ErrLoanNotOwned
		}
		return s.replayOrResume(ctx, existing, loan)
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	loan, err := s.loadActiveLoan(ctx, input.LoanID, accountID)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		LoanID:         loan.ID,
		AccountID:      accountID,
		IdempotencyKey: input.IdempotencyKey,
		Reference:      newReference("PAY"),
		Type:           domain.PaymentTypeRepayment,
		Amount:         domain.Round2(input.Amount),
		Status:         domain.PaymentStatusProcessing,
	}
	payment, err = s.paymentRepo.Create(ctx, payment)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotency) {
			// Lost the race to a concurrent attempt with the same key.
			if existing, getErr := s.paymentRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey); getErr == nil {
				return s.replayOrResume(ctx, existing, loan)
			}
		}
		return nil, err
	}

	result, provErr := s.provider.Debit(ctx, provider.DebitRequest{
		Reference: payment.Reference,
		Amount:    payment.Amount,
		AccountID: accountID.String(),
		Narration: fmt.Sprintf("Loan repayment %s", loan.ApplicationNumber),
	})
	if provErr != nil || !result.Success {
		message := "provider call failed"
		if provErr != nil {
			message = provErr.Error()
		} else if result.Message != "" {
			message = result.Message
		}
		return nil, s.failPayment(ctx, payment, message)
	}
	payment.ProviderRef = &result.ProviderReference

	return s.settle(ctx, loan, payment)
}

// replayOrResume decides what a repeated idempotency key means: a success
// payment replays, processing means another worker holds the key, failed
// retries on the same row since the unique key blocks a fresh insert.
func (s *RepaymentService) replayOrResume(ctx context.Context, payment *domain.Payment, loan *domain.Loan) (*RepaymentResult, error) {
	switch payment.Status {
	case domain.PaymentStatusSuccess:
		metrics.IdempotentReplays.Inc()
		s.logger.Info().
			Int64("payment_id", payment.ID).
			Str("idempotency_key", payment.IdempotencyKey).
			Msg("Repayment replayed from idempotency key")
		overpayment := decimal.Zero
		if payment.Allocation != nil {
			overpayment = payment.Allocation.Overpayment
		}
		return &RepaymentResult{
			Payment:     payment,
			Loan:        loan,
			Allocations: nil,
			Overpayment: overpayment,
			Completed:   loan.Status == domain.LoanStatusCompleted,
			Replayed:    true,
		}, nil
	case domain.PaymentStatusProcessing:
		return nil, domain.ErrIdempotencyInFlight
	case domain.PaymentStatusPending:
		return nil, domain.ErrIdempotencyInFlight
	case domain.PaymentStatusFailed:
		// Resuming moves money, so the loan must still be active.
		if loan.Status != domain.LoanStatusActive {
			return nil, domain.ErrLoanNotActive
		}
		payment.Status = domain.PaymentStatusProcessing
		payment.FailureReason = nil
		payment, err := s.paymentRepo.Update(ctx, payment)
		if err != nil {
			return nil, err
		}
		result, provErr := s.provider.Debit(ctx, provider.DebitRequest{
			Reference: payment.Reference,
			Amount:    payment.Amount,
			AccountID: payment.AccountID.String(),
			Narration: fmt.Sprintf("Loan repayment %s", loan.ApplicationNumber),
		})
		if provErr != nil || !result.Success {
			message := "provider call failed"
			if provErr != nil {
				message = provErr.Error()
			} else if result.Message != "" {
				message = result.Message
			}
			return nil, s.failPayment(ctx, payment, message)
		}
		payment.ProviderRef = &result.ProviderReference
		return s.settle(ctx, loan, payment)
	default:
		return nil, domain.ErrInternalError
	}
}

// ManualProofInput is the evidence bundle for an out-of-band transfer.
type ManualProofInput struct {
	LoanID            int64
	Amount            decimal.Decimal
	IdempotencyKey    string
	SenderBank        string
	SenderName        string
	TransferDate      time.Time
	ExternalReference string
	EvidenceURL       *string
}

// SubmitManualProof records a claimed bank transfer as a pending payment.
// No money moves and no balances change until an operator verifies it.
func (s *RepaymentService) SubmitManualProof(ctx context.Context, accountID uuid.UUID, input ManualProofInput) (*domain.Payment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" ||
		strings.TrimSpace(input.SenderBank) == "" ||
		strings.TrimSpace(input.SenderName) == "" ||
		strings.TrimSpace(input.ExternalReference) == "" {
		return nil, domain.ErrInvalidInput
	}

	loan, err := s.loadActiveLoan(ctx, input.LoanID, accountID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	payment := &domain.Payment{
		LoanID:         loan.ID,
		AccountID:      accountID,
		IdempotencyKey: input.IdempotencyKey,
		Reference:      newReference("PAY"),
		Type:           domain.PaymentTypeRepayment,
		Amount:         domain.Round2(input.Amount),
		Status:         domain.PaymentStatusPending,
		ManualProof: &domain.ManualProof{
			SenderBank:        input.SenderBank,
			SenderName:        input.SenderName,
			TransferDate:      input.TransferDate,
			ExternalReference: input.ExternalReference,
			EvidenceURL:       input.EvidenceURL,
		},
	}
	created, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		return nil, err
	}

	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "payment",
		EntityID:   fmt.Sprintf("%d", created.ID),
		Action:     domain.AuditActionProofSubmitted,
		Actor:      accountID,
		Next:       snapshot(created),
	})
	s.notification.NotifyOperators(ctx, domain.NotificationProofSubmitted,
		"Manual payment proof submitted",
		fmt.Sprintf("A transfer proof of %s for loan %s is awaiting verification.",
			created.Amount.StringFixed(2), loan.ApplicationNumber),
		snapshot(map[string]any{"paymentId": created.ID, "loanId": loan.ID}))

	s.logger.Info().
		Int64("payment_id", created.ID).
		Int64("loan_id", loan.ID).
		Msg("Manual proof submitted")

	return created, nil
}

// VerifyRepayment accepts a pending manual-proof payment and settles it.
// The money already moved out of band, so there is no provider debit.
func (s *RepaymentService) VerifyRepayment(ctx context.Context, paymentID int64, operatorID uuid.UUID) (*RepaymentResult, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, domain.ErrPaymentNotPending
	}

	loan, err := s.loanRepo.GetByID(ctx, payment.LoanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, domain.ErrLoanNotActive
	}

	now := time.Now()
	payment.Status = domain.PaymentStatusProcessing
	payment.VerifiedBy = &operatorID
	payment.VerifiedAt = &now
	payment, err = s.paymentRepo.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	res, err := s.settle(ctx, loan, payment)
	if err != nil {
		return nil, err
	}

	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "payment",
		EntityID:   fmt.Sprintf("%d", payment.ID),
		Action:     domain.AuditActionProofVerified,
		Actor:      operatorID,
		Next:       snapshot(res.Payment),
	})
	return res, nil
}

// RejectProof declines a pending manual-proof payment with a reason.
func (s *RepaymentService) RejectProof(ctx context.Context, paymentID int64, operatorID uuid.UUID, reason string) (*domain.Payment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrInvalidInput
	}
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, domain.ErrPaymentNotPending
	}

	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = &reason
	updated, err := s.paymentRepo.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "payment",
		EntityID:   fmt.Sprintf("%d", paymentID),
		Action:     domain.AuditActionProofRejected,
		Actor:      operatorID,
		Next:       snapshot(updated),
	})
	s.notification.Notify(ctx, payment.AccountID, domain.NotificationPaymentFailed,
		"Payment proof rejected",
		fmt.Sprintf("Your payment proof was rejected: %s", reason),
		snapshot(map[string]any{"paymentId": paymentID}))

	return updated, nil
}

// settle runs allocation and the balance update for a payment whose funds
// are confirmed, then marks it success. Installment writes that land before
// a later fault are kept; the balance update is the commit point. An engine
// fault after the funds moved marks the payment failed so a same-key retry
// can resume it; a payment never stays processing once its attempt is
// decided.
func (s *RepaymentService) settle(ctx context.Context, loan *domain.Loan, payment *domain.Payment) (*RepaymentResult, error) {
	allocations, principalPaid, interestPaid, err := s.allocate(ctx, loan.ID, payment.Amount)
	if err != nil {
		s.markFailed(ctx, payment, fmt.Sprintf("allocation failed: %s", err))
		return nil, err
	}

	applied := principalPaid.Add(interestPaid)
	overpayment := domain.Round2(payment.Amount.Sub(applied))
	if overpayment.IsNegative() {
		overpayment = decimal.Zero
	}

	updatedLoan, completed, err := s.updateBalances(ctx, loan.ID, applied)
	if err != nil {
		s.markFailed(ctx, payment, fmt.Sprintf("balance update failed: %s", err))
		return nil, err
	}

	now := time.Now()
	payment.Status = domain.PaymentStatusSuccess
	payment.Reconciled = true
	payment.ReconciledAt = &now
	payment.Allocation = &domain.Allocation{
		Principal:   principalPaid,
		Interest:    interestPaid,
		Overpayment: overpayment,
	}
	payment, err = s.paymentRepo.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "loan",
		EntityID:   fmt.Sprintf("%d", loan.ID),
		Action:     domain.AuditActionRepaymentProcessed,
		Actor:      payment.AccountID,
		Next:       snapshot(payment),
	})
	s.notification.Notify(ctx, updatedLoan.BorrowerID, domain.NotificationPaymentReceived,
		"Payment received",
		fmt.Sprintf("Payment of %s applied to loan %s. Outstanding balance: %s.",
			payment.Amount.StringFixed(2), updatedLoan.ApplicationNumber, updatedLoan.OutstandingBalance.StringFixed(2)),
		snapshot(map[string]any{"paymentId": payment.ID, "loanId": updatedLoan.ID}))
	s.notification.NotifyOperators(ctx, domain.NotificationPaymentReceived,
		"Payment received",
		fmt.Sprintf("Payment of %s received on loan %s.",
			payment.Amount.StringFixed(2), updatedLoan.ApplicationNumber),
		snapshot(map[string]any{"paymentId": payment.ID, "loanId": updatedLoan.ID}))
	if completed {
		s.notification.Notify(ctx, updatedLoan.BorrowerID, domain.NotificationLoanCompleted,
			"Loan completed",
			fmt.Sprintf("Loan %s is fully repaid. Congratulations!", updatedLoan.ApplicationNumber),
			snapshot(map[string]any{"loanId": updatedLoan.ID}))
	}
	metrics.RepaymentsProcessed.WithLabelValues("success").Inc()

	s.logger.Info().
		Int64("payment_id", payment.ID).
		Int64("loan_id", updatedLoan.ID).
		Str("amount", payment.Amount.String()).
		Str("overpayment", overpayment.String()).
		Bool("completed", completed).
		Msg("Repayment settled")

	return &RepaymentResult{
		Payment:     payment,
		Loan:        updatedLoan,
		Allocations: allocations,
		Overpayment: overpayment,
		Completed:   completed,
	}, nil
}

// allocate walks payable installments in order, filling each before moving
// to the next. Every fill is a conditional write gated on the paidAmount
// read; a conflicted installment is refetched and retried once.
func (s *RepaymentService) allocate(ctx context.Context, loanID int64, amount decimal.Decimal) ([]domain.InstallmentAllocation, decimal.Decimal, decimal.Decimal, error) {
	payable, err := s.installmentRepo.ListPayable(ctx, loanID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}

	var allocations []domain.InstallmentAllocation
	principalPaid := decimal.Zero
	interestPaid := decimal.Zero
	remaining := amount

	for _, inst := range payable {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		applied, err := s.fillInstallment(ctx, inst, remaining)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, err
		}
		if applied.IsZero() {
			continue
		}

		// Interest is considered paid first within an installment.
		interestLeft := inst.InterestShare.Sub(decimal.Min(inst.PaidAmount, inst.InterestShare))
		toInterest := decimal.Min(applied, interestLeft)
		interestPaid = interestPaid.Add(toInterest)
		principalPaid = principalPaid.Add(applied.Sub(toInterest))

		allocations = append(allocations, domain.InstallmentAllocation{
			InstallmentNumber: inst.Number,
			AmountApplied:     applied,
		})
		remaining = remaining.Sub(applied)
	}

	return allocations, domain.Round2(principalPaid), domain.Round2(interestPaid), nil
}

// fillInstallment applies up to budget against one installment under its
// conditional write, retrying once from a fresh read on conflict.
func (s *RepaymentService) fillInstallment(ctx context.Context, inst *domain.Installment, budget decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < 2; attempt++ {
		room := inst.Remaining()
		if room.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, nil
		}
		applied := decimal.Min(budget, room)
		expected := inst.PaidAmount

		inst.PaidAmount = inst.PaidAmount.Add(applied)
		if inst.PaidAmount.GreaterThanOrEqual(inst.TotalDue) {
			now := time.Now()
			inst.Status = domain.InstallmentStatusPaid
			inst.PaidAt = &now
		} else {
			inst.Status = domain.InstallmentStatusPartial
		}

		err := s.installmentRepo.ApplyPayment(ctx, inst, expected)
		if err == nil {
			return applied, nil
		}
		if !errors.Is(err, domain.ErrInstallmentConflict) {
			return decimal.Zero, err
		}

		// Another payment touched this installment; re-read and retry.
		fresh, listErr := s.installmentRepo.ListByLoan(ctx, inst.LoanID)
		if listErr != nil {
			return decimal.Zero, listErr
		}
		refound := false
		for _, f := range fresh {
			if f.ID == inst.ID {
				*inst = *f
				refound = true
				break
			}
		}
		if !refound {
			return decimal.Zero, domain.ErrInstallmentNotFound
		}
	}
	return decimal.Zero, domain.ErrInstallmentConflict
}

// updateBalances applies the settled amount to the loan under its version
// CAS, transitioning to completed in the same write when the balance
// reaches zero.
func (s *RepaymentService) updateBalances(ctx context.Context, loanID int64, applied decimal.Decimal) (*domain.Loan, bool, error) {
	for attempt := 0; attempt < balanceRetryLimit; attempt++ {
		loan, err := s.loanRepo.GetByID(ctx, loanID)
		if err != nil {
			return nil, false, err
		}

		from := loan.Status
		loan.TotalRepaid = domain.Round2(loan.TotalRepaid.Add(applied))
		loan.OutstandingBalance = domain.Round2(loan.OutstandingBalance.Sub(applied))
		completed := false
		if loan.OutstandingBalance.LessThanOrEqual(decimal.Zero) && loan.Status == domain.LoanStatusActive {
			loan.OutstandingBalance = decimal.Zero
			loan.Status = domain.LoanStatusCompleted
			completed = true
		}

		updated, err := s.loanRepo.UpdateCAS(ctx, loan, loan.Version)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return nil, false, err
		}

		if completed {
			change := domain.StatusChange{
				From:        from,
				To:          domain.LoanStatusCompleted,
				PerformedBy: updated.BorrowerID,
				ChangedAt:   time.Now(),
			}
			if err := s.loanRepo.AppendStatusHistory(ctx, loanID, change); err != nil {
				s.logger.Error().Err(err).Int64("loan_id", loanID).Msg("Failed to append status history")
			}
			s.auditRepo.Append(ctx, &domain.AuditEntry{
				EntityType: "loan",
				EntityID:   fmt.Sprintf("%d", loanID),
				Action:     domain.AuditActionLoanCompleted,
				Actor:      updated.BorrowerID,
				Next:       snapshot(updated),
			})
		}
		return updated, completed, nil
	}
	return nil, false, domain.ErrVersionConflict
}

// markFailed records a decided-but-failed attempt: status failed with the
// reason persisted, borrower notified, failure counted. Used for provider
// declines and for engine faults after the debit, so a same-key retry finds
// a resumable row instead of a stuck processing one.
func (s *RepaymentService) markFailed(ctx context.Context, payment *domain.Payment, message string) {
	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = &message
	if _, err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.logger.Error().Err(err).Int64("payment_id", payment.ID).Msg("Failed to mark payment failed")
	}
	s.notification.Notify(ctx, payment.AccountID, domain.NotificationPaymentFailed,
		"Payment failed",
		fmt.Sprintf("Your payment of %s could not be processed: %s", payment.Amount.StringFixed(2), message),
		snapshot(map[string]any{"paymentId": payment.ID}))
	metrics.RepaymentsProcessed.WithLabelValues("failed").Inc()
}

// failPayment marks the payment failed and returns the provider fault.
func (s *RepaymentService) failPayment(ctx context.Context, payment *domain.Payment, message string) error {
	s.markFailed(ctx, payment, message)

	s.logger.Warn().
		Int64("payment_id", payment.ID).
		Str("reason", message).
		Msg("Repayment failed at provider")

	return fmt.Errorf("%w: %s", domain.ErrProviderFailure, message)
}

// GetPayment returns a payment, enforcing ownership for non-operators.
func (s *RepaymentService) GetPayment(ctx context.Context, paymentID int64, accountID uuid.UUID, role domain.Role) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleOperator && payment.AccountID != accountID {
		return nil, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// ListPayments returns the account's payments, newest first.
func (s *RepaymentService) ListPayments(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*domain.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.paymentRepo.ListByAccount(ctx, accountID, page, limit)
}

// ListPendingProofs returns pending manual-proof payments for review.
func (s *RepaymentService) ListPendingProofs(ctx context.Context, loanID int64) ([]*domain.Payment, error) {
	payments, err := s.paymentRepo.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	pending := make([]*domain.Payment, 0)
	for _, p := range payments {
		if p.Status == domain.PaymentStatusPending && p.ManualProof != nil {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// GetSchedule returns the loan's installments with read-time overdue
// derivation applied.
func (s *RepaymentService) GetSchedule(ctx context.Context, loanID int64, accountID uuid.UUID, role domain.Role) ([]*domain.Installment, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleOperator && !loan.IsOwnedBy(accountID) {
		return nil, domain.ErrLoanNotFound
	}

	installments, err := s.installmentRepo.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, inst := range installments {
		inst.Status = inst.EffectiveStatus(now)
	}
	return installments, nil
}

func (s *RepaymentService) loadActiveLoan(ctx context.Context, loanID int64, accountID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.IsOwnedBy(accountID) {
		return nil, domain.ErrLoanNotOwned
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, domain.ErrLoanNotActive
	}
	return loan, nil
}
