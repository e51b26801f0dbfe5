package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/testutil"
)

type disbursementFixture struct {
	loans        *testutil.MockLoanRepository
	installments *testutil.MockInstallmentRepository
	audit        *testutil.MockAuditRepository
	provider     *testutil.MockProvider
	service      *DisbursementService

	borrowerID uuid.UUID
	operatorID uuid.UUID
	loan       *domain.Loan
}

// newDisbursementFixture builds an approved 100000 loan with bank details.
func newDisbursementFixture(t *testing.T) *disbursementFixture {
	t.Helper()

	f := &disbursementFixture{
		loans:        testutil.NewMockLoanRepository(),
		installments: testutil.NewMockInstallmentRepository(),
		audit:        testutil.NewMockAuditRepository(),
		provider:     testutil.NewMockProvider(),
		borrowerID:   uuid.New(),
		operatorID:   uuid.New(),
	}

	notification := NewNotificationService(
		testutil.NewMockNotificationRepository(), testutil.NewMockAccountRepository(), nil, zerolog.Nop())
	f.service = NewDisbursementService(
		f.loans, f.installments, f.audit, f.provider, notification, zerolog.Nop())

	loan := &domain.Loan{
		ApplicationNumber:  "KRD-20260301-DSB001",
		BorrowerID:         f.borrowerID,
		Purpose:            "equipment",
		AnnualInterestRate: decimal.NewFromFloat(0.15),
		RequestedAmount:    decimal.NewFromInt(100000),
		TenorMonths:        10,
		Status:             domain.LoanStatusApproved,
		Bank: &domain.BankDestination{
			AccountNumber: "0123456789",
			BankCode:      "058",
			AccountName:   "Ada Borrower",
		},
	}
	loan.DeriveFigures(decimal.NewFromInt(100000))
	f.loan = f.loans.AddLoan(loan)
	return f
}

func TestDisburse_Success(t *testing.T) {
	f := newDisbursementFixture(t)

	loan, err := f.service.Disburse(context.Background(), f.loan.ID, f.operatorID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if loan.Status != domain.LoanStatusActive {
		t.Errorf("Expected active, got %s", loan.Status)
	}
	if loan.Disbursement == nil {
		t.Fatal("Expected disbursement record")
	}
	if loan.Disbursement.ProviderReference == nil || loan.Disbursement.DisbursedAt == nil {
		t.Error("Expected provider reference and disbursement time on commit")
	}
	if loan.Disbursement.DisbursedBy != f.operatorID {
		t.Error("Expected disbursing operator recorded")
	}

	// The schedule exists with one installment per tenor month.
	schedule, _ := f.installments.ListByLoan(context.Background(), f.loan.ID)
	if len(schedule) != 10 {
		t.Errorf("Expected 10 installments, got %d", len(schedule))
	}

	// approved -> disbursed -> active in the history.
	history, _ := f.loans.GetStatusHistory(context.Background(), f.loan.ID)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].To != domain.LoanStatusDisbursed || history[1].To != domain.LoanStatusActive {
		t.Errorf("Unexpected history sequence: %+v", history)
	}

	if len(f.provider.Transfers) != 1 {
		t.Fatalf("Expected one transfer, got %d", len(f.provider.Transfers))
	}
	if !f.provider.Transfers[0].Amount.Equal(loan.Principal) {
		t.Errorf("Expected transfer of the principal, got %s", f.provider.Transfers[0].Amount)
	}
}

func TestDisburse_ProviderFailureCompensates(t *testing.T) {
	f := newDisbursementFixture(t)
	f.provider.FailTransfers = true
	f.provider.FailureMessage = "beneficiary bank unavailable"

	_, err := f.service.Disburse(context.Background(), f.loan.ID, f.operatorID)
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}

	// The reservation is reverted: back to approved, no disbursement record.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if loan.Status != domain.LoanStatusApproved {
		t.Errorf("Expected approved after compensation, got %s", loan.Status)
	}
	if loan.Disbursement != nil {
		t.Error("Expected disbursement record cleared")
	}

	// No schedule was generated.
	schedule, _ := f.installments.ListByLoan(context.Background(), f.loan.ID)
	if len(schedule) != 0 {
		t.Errorf("Expected no installments, got %d", len(schedule))
	}

	// The compensation edge is in the history with the provider's reason.
	history, _ := f.loans.GetStatusHistory(context.Background(), f.loan.ID)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	revert := history[1]
	if revert.From != domain.LoanStatusDisbursed || revert.To != domain.LoanStatusApproved {
		t.Errorf("Expected disbursed -> approved, got %s -> %s", revert.From, revert.To)
	}
	if revert.Reason == nil || *revert.Reason != "disbursement reverted: beneficiary bank unavailable" {
		t.Errorf("Expected revert reason, got %v", revert.Reason)
	}

	// The revert is audited.
	actions := f.audit.Actions()
	if len(actions) != 1 || actions[0] != domain.AuditActionDisburseReverted {
		t.Errorf("Expected DISBURSEMENT_REVERTED audit entry, got %v", actions)
	}
}

func TestDisburse_SecondAttemptAfterCompensation(t *testing.T) {
	f := newDisbursementFixture(t)

	f.provider.FailTransfers = true
	if _, err := f.service.Disburse(context.Background(), f.loan.ID, f.operatorID); err == nil {
		t.Fatal("Expected first attempt to fail")
	}

	f.provider.FailTransfers = false
	loan, err := f.service.Disburse(context.Background(), f.loan.ID, f.operatorID)
	if err != nil {
		t.Fatalf("Expected second attempt to succeed, got %v", err)
	}
	if loan.Status != domain.LoanStatusActive {
		t.Errorf("Expected active, got %s", loan.Status)
	}

	// Each attempt carries its own reference.
	if len(f.provider.Transfers) != 2 {
		t.Fatalf("Expected 2 transfers, got %d", len(f.provider.Transfers))
	}
	if f.provider.Transfers[0].Reference == f.provider.Transfers[1].Reference {
		t.Error("Expected a fresh reference for the retry")
	}
}

func TestDisburse_DuplicateReferenceRejected(t *testing.T) {
	f := newDisbursementFixture(t)
	ctx := context.Background()

	disbursed, err := f.service.Disburse(ctx, f.loan.ID, f.operatorID)
	if err != nil {
		t.Fatalf("Disbursement failed: %v", err)
	}

	// No second loan can commit a disbursement carrying the same reference;
	// the store rejects the write like the unique index does.
	other := f.loans.AddLoan(&domain.Loan{
		BorrowerID: uuid.New(),
		Status:     domain.LoanStatusApproved,
		Bank:       f.loan.Bank,
	})
	stored, _ := f.loans.GetByID(ctx, other.ID)
	stored.Status = domain.LoanStatusDisbursed
	stored.Disbursement = &domain.Disbursement{
		Reference:   disbursed.Disbursement.Reference,
		Bank:        *stored.Bank,
		DisbursedBy: f.operatorID,
	}
	if _, err := f.loans.UpdateCAS(ctx, stored, stored.Version); !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("Expected ErrDuplicateReference, got %v", err)
	}
}

func TestDisburse_Guards(t *testing.T) {
	f := newDisbursementFixture(t)
	ctx := context.Background()

	// Not approved.
	pending := f.loans.AddLoan(&domain.Loan{
		BorrowerID: f.borrowerID,
		Status:     domain.LoanStatusPending,
		Bank:       f.loan.Bank,
	})
	var transitionErr domain.InvalidTransitionError
	if _, err := f.service.Disburse(ctx, pending.ID, f.operatorID); !errors.As(err, &transitionErr) {
		t.Errorf("Expected InvalidTransitionError, got %v", err)
	}

	// No bank details.
	noBank := f.loans.AddLoan(&domain.Loan{
		BorrowerID: uuid.New(),
		Status:     domain.LoanStatusApproved,
	})
	if _, err := f.service.Disburse(ctx, noBank.ID, f.operatorID); !errors.Is(err, domain.ErrMissingBankDetails) {
		t.Errorf("Expected ErrMissingBankDetails, got %v", err)
	}

	// Unknown loan.
	if _, err := f.service.Disburse(ctx, 9999, f.operatorID); !errors.Is(err, domain.ErrLoanNotFound) {
		t.Errorf("Expected ErrLoanNotFound, got %v", err)
	}

	// Already disbursed.
	if _, err := f.service.Disburse(ctx, f.loan.ID, f.operatorID); err != nil {
		t.Fatalf("Setup disbursement failed: %v", err)
	}
	if _, err := f.service.Disburse(ctx, f.loan.ID, f.operatorID); !errors.Is(err, domain.ErrAlreadyDisbursed) {
		t.Errorf("Expected ErrAlreadyDisbursed, got %v", err)
	}
}

func TestDisburse_LostReservationRace(t *testing.T) {
	f := newDisbursementFixture(t)

	// Another worker bumps the version between the read and the write.
	calls := 0
	f.loans.UpdateCASFn = func(ctx context.Context, loan *domain.Loan, expectedVersion int64) (*domain.Loan, error) {
		calls++
		if calls == 1 {
			return nil, domain.ErrVersionConflict
		}
		f.loans.UpdateCASFn = nil
		return f.loans.UpdateCAS(ctx, loan, expectedVersion)
	}

	// The re-read sees the loan still approved and undisbursed, so the raw
	// conflict surfaces for the caller to retry.
	_, err := f.service.Disburse(context.Background(), f.loan.ID, f.operatorID)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}
}
