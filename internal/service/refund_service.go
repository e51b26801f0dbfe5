package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/metrics"
	"github.com/kredia/kredia-backend/internal/provider"
)

// RefundService handles the two refund flavors. A full refund returns the
// whole payment and restores the debt it had cleared; an overpayment refund
// returns only the excess slice and leaves the loan untouched.
type RefundService struct {
	loanRepo     domain.LoanRepository
	paymentRepo  domain.PaymentRepository
	auditRepo    domain.AuditRepository
	provider     provider.Provider
	notification *NotificationService
	logger       zerolog.Logger
}

// NewRefundService creates a new RefundService
func NewRefundService(
	loanRepo domain.LoanRepository,
	paymentRepo domain.PaymentRepository,
	auditRepo domain.AuditRepository,
	paymentProvider provider.Provider,
	notification *NotificationService,
	logger zerolog.Logger,
) *RefundService {
	return &RefundService{
		loanRepo:     loanRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		provider:     paymentProvider,
		notification: notification,
		logger:       logger.With().Str("service", "refund").Logger(),
	}
}

// RefundPayment refunds a success repayment in full. The debt the payment
// cleared is restored on the loan; installment rows are left as they are,
// so schedule state may lag the loan balance until reconciliation.
func (s *RefundService) RefundPayment(ctx context.Context, paymentID int64, operatorID uuid.UUID, reason string) (*domain.Payment, error) {
	source, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if source.Type != domain.PaymentTypeRepayment {
		return nil, domain.ErrInvalidInput
	}
	if source.Status != domain.PaymentStatusSuccess {
		return nil, domain.ErrPaymentNotSuccess
	}
	if _, err := s.paymentRepo.GetRefundOf(ctx, source.ID); err == nil {
		return nil, domain.ErrAlreadyRefunded
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}

	loan, err := s.loanRepo.GetByID(ctx, source.LoanID)
	if err != nil {
		return nil, err
	}

	refund, err := s.resumeOrCreateRefund(ctx, &domain.Payment{
		LoanID:            loan.ID,
		AccountID:         source.AccountID,
		IdempotencyKey:    fmt.Sprintf("refund-%d", source.ID),
		Reference:         newReference("RFD"),
		Type:              domain.PaymentTypeRefund,
		Amount:            source.Amount,
		Status:            domain.PaymentStatusProcessing,
		RefundOfPaymentID: &source.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.transferOut(ctx, refund, loan, "full"); err != nil {
		return nil, err
	}

	// Restore the debt the refunded payment had cleared.
	restored := source.Amount
	if source.Allocation != nil {
		restored = domain.Round2(source.Allocation.Principal.Add(source.Allocation.Interest))
	}
	updatedLoan, err := s.restoreBalances(ctx, loan.ID, restored)
	if err != nil {
		s.logger.Error().Err(err).Int64("loan_id", loan.ID).Int64("refund_id", refund.ID).
			Msg("Balance restore failed after refund transfer")
		return nil, err
	}

	refund.Status = domain.PaymentStatusSuccess
	refund, err = s.paymentRepo.Update(ctx, refund)
	if err != nil {
		return nil, err
	}

	s.finishRefund(ctx, refund, updatedLoan, operatorID, reason, "full")
	return refund, nil
}

// RefundOverpayment returns only the unapplied excess of a success payment.
// The loan's balances never included the excess, so they stay as they are.
func (s *RefundService) RefundOverpayment(ctx context.Context, paymentID int64, operatorID uuid.UUID) (*domain.Payment, error) {
	source, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if source.Status != domain.PaymentStatusSuccess {
		return nil, domain.ErrPaymentNotSuccess
	}
	if source.Allocation == nil || source.Allocation.Overpayment.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	if source.OverpaymentRefunded {
		return nil, domain.ErrAlreadyRefunded
	}

	loan, err := s.loanRepo.GetByID(ctx, source.LoanID)
	if err != nil {
		return nil, err
	}

	refund, err := s.resumeOrCreateRefund(ctx, &domain.Payment{
		LoanID:            loan.ID,
		AccountID:         source.AccountID,
		IdempotencyKey:    fmt.Sprintf("overpayment-refund-%d", source.ID),
		Reference:         newReference("RFD"),
		Type:              domain.PaymentTypeRefund,
		Amount:            source.Allocation.Overpayment,
		Status:            domain.PaymentStatusProcessing,
		RefundOfPaymentID: &source.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.transferOut(ctx, refund, loan, "overpayment"); err != nil {
		return nil, err
	}

	// Only a transfer that actually went out marks the source refunded; a
	// failed attempt leaves the flag clear so the refund can be retried.
	if err := s.paymentRepo.MarkOverpaymentRefunded(ctx, source.ID); err != nil {
		if !errors.Is(err, domain.ErrAlreadyRefunded) {
			s.logger.Error().Err(err).Int64("payment_id", source.ID).
				Msg("Failed to flag overpayment refunded after transfer")
		}
	}

	refund.Status = domain.PaymentStatusSuccess
	refund, err = s.paymentRepo.Update(ctx, refund)
	if err != nil {
		return nil, err
	}

	s.finishRefund(ctx, refund, loan, operatorID, "overpayment refund", "overpayment")
	return refund, nil
}

// resumeOrCreateRefund returns a processing refund row for the key: a fresh
// insert, or a prior failed attempt reset for another try. A success row
// means the refund already went out; a processing or pending row belongs to
// another in-flight attempt.
func (s *RefundService) resumeOrCreateRefund(ctx context.Context, refund *domain.Payment) (*domain.Payment, error) {
	existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, refund.IdempotencyKey)
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, err
		}
		created, err := s.paymentRepo.Create(ctx, refund)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateIdempotency) {
				// Lost the race to a concurrent attempt with the same key.
				return nil, domain.ErrIdempotencyInFlight
			}
			return nil, err
		}
		return created, nil
	}

	switch existing.Status {
	case domain.PaymentStatusSuccess:
		return nil, domain.ErrAlreadyRefunded
	case domain.PaymentStatusFailed:
		existing.Status = domain.PaymentStatusProcessing
		existing.FailureReason = nil
		return s.paymentRepo.Update(ctx, existing)
	default:
		return nil, domain.ErrIdempotencyInFlight
	}
}

// transferOut sends the refund amount back through the provider, marking
// the refund failed when the transfer does not succeed.
func (s *RefundService) transferOut(ctx context.Context, refund *domain.Payment, loan *domain.Loan, flavor string) error {
	if loan.Bank == nil {
		message := "no bank destination on loan"
		return s.failRefund(ctx, refund, message, flavor)
	}

	result, provErr := s.provider.Transfer(ctx, provider.TransferRequest{
		Reference:     refund.Reference,
		Amount:        refund.Amount,
		AccountNumber: loan.Bank.AccountNumber,
		BankCode:      loan.Bank.BankCode,
		Narration:     fmt.Sprintf("Refund for loan %s", loan.ApplicationNumber),
	})
	if provErr != nil || !result.Success {
		message := "provider call failed"
		if provErr != nil {
			message = provErr.Error()
		} else if result.Message != "" {
			message = result.Message
		}
		return s.failRefund(ctx, refund, message, flavor)
	}

	refund.ProviderRef = &result.ProviderReference
	return nil
}

func (s *RefundService) failRefund(ctx context.Context, refund *domain.Payment, message, flavor string) error {
	refund.Status = domain.PaymentStatusFailed
	refund.FailureReason = &message
	if _, err := s.paymentRepo.Update(ctx, refund); err != nil {
		s.logger.Error().Err(err).Int64("refund_id", refund.ID).Msg("Failed to mark refund failed")
	}
	metrics.Refunds.WithLabelValues(flavor, "failed").Inc()

	s.logger.Warn().
		Int64("refund_id", refund.ID).
		Str("flavor", flavor).
		Str("reason", message).
		Msg("Refund failed at provider")

	return fmt.Errorf("%w: %s", domain.ErrProviderFailure, message)
}

// restoreBalances puts the refunded debt back on the loan under its version
// CAS. A completed loan whose debt returns goes back to active.
func (s *RefundService) restoreBalances(ctx context.Context, loanID int64, restored decimal.Decimal) (*domain.Loan, error) {
	for attempt := 0; attempt < balanceRetryLimit; attempt++ {
		loan, err := s.loanRepo.GetByID(ctx, loanID)
		if err != nil {
			return nil, err
		}

		loan.TotalRepaid = domain.Round2(loan.TotalRepaid.Sub(restored))
		if loan.TotalRepaid.IsNegative() {
			loan.TotalRepaid = decimal.Zero
		}
		loan.OutstandingBalance = domain.Round2(loan.OutstandingBalance.Add(restored))
		if loan.Status == domain.LoanStatusCompleted {
			loan.Status = domain.LoanStatusActive
		}

		updated, err := s.loanRepo.UpdateCAS(ctx, loan, loan.Version)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return nil, err
		}
		return updated, nil
	}
	return nil, domain.ErrVersionConflict
}

func (s *RefundService) finishRefund(ctx context.Context, refund *domain.Payment, loan *domain.Loan, operatorID uuid.UUID, reason, flavor string) {
	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "payment",
		EntityID:   fmt.Sprintf("%d", refund.ID),
		Action:     domain.AuditActionRefundProcessed,
		Actor:      operatorID,
		Next:       snapshot(refund),
	})
	s.notification.Notify(ctx, refund.AccountID, domain.NotificationRefundProcessed,
		"Refund processed",
		fmt.Sprintf("A refund of %s for loan %s has been sent to your account.",
			refund.Amount.StringFixed(2), loan.ApplicationNumber),
		snapshot(map[string]any{"refundId": refund.ID, "loanId": loan.ID}))
	metrics.Refunds.WithLabelValues(flavor, "success").Inc()

	s.logger.Info().
		Int64("refund_id", refund.ID).
		Int64("loan_id", loan.ID).
		Str("flavor", flavor).
		Str("amount", refund.Amount.String()).
		Str("reason", reason).
		Msg("Refund processed")
}
