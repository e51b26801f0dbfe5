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

type refundFixture struct {
	loans    *testutil.MockLoanRepository
	payments *testutil.MockPaymentRepository
	audit    *testutil.MockAuditRepository
	provider *testutil.MockProvider
	service  *RefundService

	borrowerID uuid.UUID
	operatorID uuid.UUID
	loan       *domain.Loan
	payment    *domain.Payment
}

// newRefundFixture builds an active loan with one settled 11250 repayment
// (1250 interest, 10000 principal, no overpayment).
func newRefundFixture(t *testing.T) *refundFixture {
	t.Helper()

	f := &refundFixture{
		loans:      testutil.NewMockLoanRepository(),
		payments:   testutil.NewMockPaymentRepository(),
		audit:      testutil.NewMockAuditRepository(),
		provider:   testutil.NewMockProvider(),
		borrowerID: uuid.New(),
		operatorID: uuid.New(),
	}

	notification := NewNotificationService(
		testutil.NewMockNotificationRepository(), testutil.NewMockAccountRepository(), nil, zerolog.Nop())
	f.service = NewRefundService(f.loans, f.payments, f.audit, f.provider, notification, zerolog.Nop())

	loan := &domain.Loan{
		ApplicationNumber:  "KRD-20260301-RFD001",
		BorrowerID:         f.borrowerID,
		AnnualInterestRate: decimal.NewFromFloat(0.15),
		RequestedAmount:    decimal.NewFromInt(100000),
		TenorMonths:        10,
		Status:             domain.LoanStatusActive,
		Bank: &domain.BankDestination{
			AccountNumber: "0123456789",
			BankCode:      "058",
			AccountName:   "Ada Borrower",
		},
	}
	loan.DeriveFigures(decimal.NewFromInt(100000))
	loan.TotalRepaid = decimal.NewFromInt(11250)
	loan.OutstandingBalance = decimal.NewFromInt(101250)
	f.loan = f.loans.AddLoan(loan)

	f.payment = f.payments.AddPayment(&domain.Payment{
		LoanID:         f.loan.ID,
		AccountID:      f.borrowerID,
		IdempotencyKey: "pay-1",
		Reference:      "PAY-SETTLED",
		Type:           domain.PaymentTypeRepayment,
		Amount:         decimal.NewFromInt(11250),
		Status:         domain.PaymentStatusSuccess,
		Allocation: &domain.Allocation{
			Principal:   decimal.NewFromInt(10000),
			Interest:    decimal.NewFromInt(1250),
			Overpayment: decimal.Zero,
		},
	})
	return f
}

func TestRefundPayment_RestoresDebt(t *testing.T) {
	f := newRefundFixture(t)

	refund, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "customer dispute")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if refund.Type != domain.PaymentTypeRefund {
		t.Errorf("Expected refund type, got %s", refund.Type)
	}
	if refund.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success, got %s", refund.Status)
	}
	if !refund.Amount.Equal(f.payment.Amount) {
		t.Errorf("Expected full amount %s, got %s", f.payment.Amount, refund.Amount)
	}
	if refund.RefundOfPaymentID == nil || *refund.RefundOfPaymentID != f.payment.ID {
		t.Error("Expected refund linked to its source payment")
	}

	// The debt the payment cleared comes back.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.IsZero() {
		t.Errorf("Expected total repaid 0, got %s", loan.TotalRepaid)
	}
	if !loan.OutstandingBalance.Equal(decimal.NewFromInt(112500)) {
		t.Errorf("Expected outstanding 112500, got %s", loan.OutstandingBalance)
	}

	if len(f.provider.Transfers) != 1 {
		t.Errorf("Expected one transfer, got %d", len(f.provider.Transfers))
	}
}

func TestRefundPayment_DoubleRefundGuard(t *testing.T) {
	f := newRefundFixture(t)

	if _, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "dispute"); err != nil {
		t.Fatalf("First refund failed: %v", err)
	}

	_, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "dispute again")
	if !errors.Is(err, domain.ErrAlreadyRefunded) {
		t.Fatalf("Expected ErrAlreadyRefunded, got %v", err)
	}
	if len(f.provider.Transfers) != 1 {
		t.Errorf("Expected money to move once, got %d transfers", len(f.provider.Transfers))
	}
}

func TestRefundPayment_ReactivatesCompletedLoan(t *testing.T) {
	f := newRefundFixture(t)

	// Simulate a loan paid down to zero by the refunded payment.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	loan.Status = domain.LoanStatusCompleted
	loan.TotalRepaid = loan.TotalRepayable
	loan.OutstandingBalance = decimal.Zero
	if _, err := f.loans.UpdateCAS(context.Background(), loan, loan.Version); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	if _, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "dispute"); err != nil {
		t.Fatalf("Refund failed: %v", err)
	}

	updated, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if updated.Status != domain.LoanStatusActive {
		t.Errorf("Expected completed loan back to active, got %s", updated.Status)
	}
	if !updated.OutstandingBalance.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("Expected outstanding 11250, got %s", updated.OutstandingBalance)
	}
}

func TestRefundPayment_Guards(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()

	// Only success payments can be refunded.
	failed := f.payments.AddPayment(&domain.Payment{
		LoanID:    f.loan.ID,
		AccountID: f.borrowerID,
		Reference: "PAY-FAILED",
		Type:      domain.PaymentTypeRepayment,
		Status:    domain.PaymentStatusFailed,
		Amount:    decimal.NewFromInt(100),
	})
	if _, err := f.service.RefundPayment(ctx, failed.ID, f.operatorID, "r"); !errors.Is(err, domain.ErrPaymentNotSuccess) {
		t.Errorf("Expected ErrPaymentNotSuccess, got %v", err)
	}

	// Refunds of refunds are rejected.
	refund, err := f.service.RefundPayment(ctx, f.payment.ID, f.operatorID, "dispute")
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if _, err := f.service.RefundPayment(ctx, refund.ID, f.operatorID, "r"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for refund of a refund, got %v", err)
	}
}

func TestRefundPayment_ProviderFailure(t *testing.T) {
	f := newRefundFixture(t)
	f.provider.FailTransfers = true

	_, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "dispute")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}

	// Balances untouched when the transfer never happened.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("Expected balances untouched, got repaid %s", loan.TotalRepaid)
	}

	// The failed refund row does not block a later retry.
	if _, err := f.payments.GetRefundOf(context.Background(), f.payment.ID); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Errorf("Expected failed refund to be invisible to the guard, got %v", err)
	}
}

func TestRefundPayment_RetryAfterProviderFailure(t *testing.T) {
	f := newRefundFixture(t)
	f.provider.FailTransfers = true

	_, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "dispute")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}

	// The failed row holds the key; the retry resumes it instead of being
	// mistaken for a completed refund.
	f.provider.FailTransfers = false
	refund, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "dispute")
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if refund.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success after retry, got %s", refund.Status)
	}
	if len(f.provider.Transfers) != 2 {
		t.Errorf("Expected two transfer attempts, got %d", len(f.provider.Transfers))
	}

	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.IsZero() {
		t.Errorf("Expected total repaid 0 after refund, got %s", loan.TotalRepaid)
	}

	// A third call now hits the completed-refund guard.
	if _, err := f.service.RefundPayment(context.Background(), f.payment.ID, f.operatorID, "again"); !errors.Is(err, domain.ErrAlreadyRefunded) {
		t.Errorf("Expected ErrAlreadyRefunded, got %v", err)
	}
}

func TestRefundOverpayment(t *testing.T) {
	f := newRefundFixture(t)

	over := f.payments.AddPayment(&domain.Payment{
		LoanID:         f.loan.ID,
		AccountID:      f.borrowerID,
		IdempotencyKey: "pay-over",
		Reference:      "PAY-OVER",
		Type:           domain.PaymentTypeRepayment,
		Amount:         decimal.NewFromInt(11350),
		Status:         domain.PaymentStatusSuccess,
		Allocation: &domain.Allocation{
			Principal:   decimal.NewFromInt(10000),
			Interest:    decimal.NewFromInt(1250),
			Overpayment: decimal.NewFromInt(100),
		},
	})

	refund, err := f.service.RefundOverpayment(context.Background(), over.ID, f.operatorID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Only the excess slice is returned.
	if !refund.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected refund of 100, got %s", refund.Amount)
	}

	// Loan balances never included the excess, so they stay put.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("Expected total repaid unchanged, got %s", loan.TotalRepaid)
	}
	if !loan.OutstandingBalance.Equal(decimal.NewFromInt(101250)) {
		t.Errorf("Expected outstanding unchanged, got %s", loan.OutstandingBalance)
	}

	// The source payment carries the refunded flag, blocking a second run.
	source, _ := f.payments.GetByID(context.Background(), over.ID)
	if !source.OverpaymentRefunded {
		t.Error("Expected overpaymentRefunded flag set")
	}
	if _, err := f.service.RefundOverpayment(context.Background(), over.ID, f.operatorID); !errors.Is(err, domain.ErrAlreadyRefunded) {
		t.Errorf("Expected ErrAlreadyRefunded, got %v", err)
	}
}

func TestRefundOverpayment_RetryAfterProviderFailure(t *testing.T) {
	f := newRefundFixture(t)

	over := f.payments.AddPayment(&domain.Payment{
		LoanID:         f.loan.ID,
		AccountID:      f.borrowerID,
		IdempotencyKey: "pay-over-retry",
		Reference:      "PAY-OVER-RETRY",
		Type:           domain.PaymentTypeRepayment,
		Amount:         decimal.NewFromInt(11350),
		Status:         domain.PaymentStatusSuccess,
		Allocation: &domain.Allocation{
			Principal:   decimal.NewFromInt(10000),
			Interest:    decimal.NewFromInt(1250),
			Overpayment: decimal.NewFromInt(100),
		},
	})

	f.provider.FailTransfers = true
	_, err := f.service.RefundOverpayment(context.Background(), over.ID, f.operatorID)
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}

	// A failed transfer leaves the flag clear so the money can still go out.
	source, _ := f.payments.GetByID(context.Background(), over.ID)
	if source.OverpaymentRefunded {
		t.Fatal("Expected flag clear after a failed transfer")
	}

	f.provider.FailTransfers = false
	refund, err := f.service.RefundOverpayment(context.Background(), over.ID, f.operatorID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if refund.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success after retry, got %s", refund.Status)
	}
	if len(f.provider.Transfers) != 2 {
		t.Errorf("Expected two transfer attempts, got %d", len(f.provider.Transfers))
	}

	source, _ = f.payments.GetByID(context.Background(), over.ID)
	if !source.OverpaymentRefunded {
		t.Error("Expected flag set after the transfer went out")
	}
	if _, err := f.service.RefundOverpayment(context.Background(), over.ID, f.operatorID); !errors.Is(err, domain.ErrAlreadyRefunded) {
		t.Errorf("Expected ErrAlreadyRefunded on the third call, got %v", err)
	}
}

func TestRefundOverpayment_NoExcess(t *testing.T) {
	f := newRefundFixture(t)

	_, err := f.service.RefundOverpayment(context.Background(), f.payment.ID, f.operatorID)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for a payment without excess, got %v", err)
	}
}
