package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/metrics"
	"github.com/kredia/kredia-backend/internal/provider"
)

// DisbursementService runs the two-phase disbursement protocol: a local
// reservation under the loan's version CAS, the external transfer, and
// either a commit (loan active + schedule generated) or a compensation
// (loan back to approved with the reference cleared).
type DisbursementService struct {
	loanRepo        domain.LoanRepository
	installmentRepo domain.InstallmentRepository
	auditRepo       domain.AuditRepository
	provider        provider.Provider
	notification    *NotificationService
	logger          zerolog.Logger
}

// NewDisbursementService creates a new DisbursementService
func NewDisbursementService(
	loanRepo domain.LoanRepository,
	installmentRepo domain.InstallmentRepository,
	auditRepo domain.AuditRepository,
	paymentProvider provider.Provider,
	notification *NotificationService,
	logger zerolog.Logger,
) *DisbursementService {
	return &DisbursementService{
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
		auditRepo:       auditRepo,
		provider:        paymentProvider,
		notification:    notification,
		logger:          logger.With().Str("service", "disbursement").Logger(),
	}
}

// Disburse releases funds for an approved loan. On provider failure the
// reservation is reverted and the loan stays eligible for a fresh attempt
// with a new reference.
func (s *DisbursementService) Disburse(ctx context.Context, loanID int64, operatorID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if loan.Disbursement != nil {
		return nil, domain.ErrAlreadyDisbursed
	}
	if loan.Status != domain.LoanStatusApproved {
		return nil, domain.InvalidTransitionError{From: loan.Status, To: domain.LoanStatusDisbursed}
	}
	if loan.Bank == nil {
		return nil, domain.ErrMissingBankDetails
	}

	// Phase 1: reserve. The conditional write is what makes two concurrent
	// disbursement attempts resolve to a single winner.
	before := snapshot(loan)
	reference := newReference("DSB")
	loan.Status = domain.LoanStatusDisbursed
	loan.Disbursement = &domain.Disbursement{
		Reference:   reference,
		Bank:        *loan.Bank,
		DisbursedBy: operatorID,
	}

	reserved, err := s.loanRepo.UpdateCAS(ctx, loan, loan.Version)
	if err != nil {
		return nil, s.diagnoseReserveFailure(ctx, loanID, err)
	}
	s.appendHistory(ctx, loanID, domain.LoanStatusApproved, domain.LoanStatusDisbursed, nil, operatorID)

	// Phase 2: external transfer. The reference makes the call idempotent
	// at the provider boundary.
	result, provErr := s.provider.Transfer(ctx, provider.TransferRequest{
		Reference:     reference,
		Amount:        reserved.Principal,
		AccountNumber: reserved.Bank.AccountNumber,
		BankCode:      reserved.Bank.BankCode,
		Narration:     fmt.Sprintf("Loan disbursement %s", reserved.ApplicationNumber),
	})
	if provErr != nil || !result.Success {
		message := "provider call failed"
		if provErr != nil {
			message = provErr.Error()
		} else if result.Message != "" {
			message = result.Message
		}
		return nil, s.compensate(ctx, reserved, operatorID, message)
	}

	// Phase 3: commit.
	now := time.Now()
	reserved.Status = domain.LoanStatusActive
	reserved.Disbursement.ProviderReference = &result.ProviderReference
	reserved.Disbursement.DisbursedAt = &now

	committed, err := s.loanRepo.UpdateCAS(ctx, reserved, reserved.Version)
	if err != nil {
		// Money has moved; surface the fault rather than compensating.
		s.logger.Error().Err(err).Int64("loan_id", loanID).Str("reference", reference).
			Msg("Commit failed after successful transfer")
		return nil, err
	}
	s.appendHistory(ctx, loanID, domain.LoanStatusDisbursed, domain.LoanStatusActive, nil, operatorID)

	schedule := domain.GenerateSchedule(committed, now)
	if err := s.installmentRepo.CreateBatch(ctx, schedule); err != nil {
		s.logger.Error().Err(err).Int64("loan_id", loanID).Msg("Failed to create repayment schedule")
		return nil, err
	}

	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "loan",
		EntityID:   fmt.Sprintf("%d", loanID),
		Action:     domain.AuditActionLoanDisbursed,
		Actor:      operatorID,
		Previous:   before,
		Next:       snapshot(committed),
	})
	s.notification.Notify(ctx, committed.BorrowerID, domain.NotificationLoanDisbursed,
		"Loan disbursed",
		fmt.Sprintf("Loan %s has been disbursed. Your first installment is due on %s.",
			committed.ApplicationNumber, schedule[0].DueDate.Format("2 Jan 2006")),
		snapshot(map[string]any{"loanId": committed.ID, "reference": reference}))
	metrics.Disbursements.WithLabelValues("committed").Inc()

	s.logger.Info().
		Int64("loan_id", loanID).
		Str("reference", reference).
		Str("provider_reference", result.ProviderReference).
		Int("installments", len(schedule)).
		Msg("Disbursement committed")

	return committed, nil
}

// diagnoseReserveFailure re-reads the loan to turn a lost reservation race
// into the precise fault the caller can act on.
func (s *DisbursementService) diagnoseReserveFailure(ctx context.Context, loanID int64, casErr error) error {
	current, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return domain.ErrLoanNotFound
	}
	if current.Disbursement != nil {
		return domain.ErrAlreadyDisbursed
	}
	if current.Status != domain.LoanStatusApproved {
		return domain.InvalidTransitionError{From: current.Status, To: domain.LoanStatusDisbursed}
	}
	return casErr
}

// compensate reverts the reservation after a failed transfer.
func (s *DisbursementService) compensate(ctx context.Context, loan *domain.Loan, operatorID uuid.UUID, providerMessage string) error {
	before := snapshot(loan)
	loan.Status = domain.LoanStatusApproved
	loan.Disbursement = nil

	reverted, err := s.loanRepo.UpdateCAS(ctx, loan, loan.Version)
	if err != nil {
		s.logger.Error().Err(err).Int64("loan_id", loan.ID).Msg("Compensation update failed")
		return err
	}

	reason := fmt.Sprintf("disbursement reverted: %s", providerMessage)
	s.appendHistory(ctx, loan.ID, domain.LoanStatusDisbursed, domain.LoanStatusApproved, &reason, operatorID)
	s.auditRepo.Append(ctx, &domain.AuditEntry{
		EntityType: "loan",
		EntityID:   fmt.Sprintf("%d", loan.ID),
		Action:     domain.AuditActionDisburseReverted,
		Actor:      operatorID,
		Previous:   before,
		Next:       snapshot(reverted),
	})
	metrics.Disbursements.WithLabelValues("compensated").Inc()

	s.logger.Warn().
		Int64("loan_id", loan.ID).
		Str("provider_message", providerMessage).
		Msg("Disbursement compensated")

	return fmt.Errorf("%w: %s", domain.ErrProviderFailure, providerMessage)
}

func (s *DisbursementService) appendHistory(ctx context.Context, loanID int64, from, to domain.LoanStatus, reason *string, operatorID uuid.UUID) {
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
}
