package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/testutil"
)

type repaymentFixture struct {
	loans         *testutil.MockLoanRepository
	installments  *testutil.MockInstallmentRepository
	payments      *testutil.MockPaymentRepository
	audit         *testutil.MockAuditRepository
	notifications *testutil.MockNotificationRepository
	accounts      *testutil.MockAccountRepository
	provider      *testutil.MockProvider
	service       *RepaymentService

	borrowerID uuid.UUID
	loan       *domain.Loan
}

// newRepaymentFixture builds an active 100000 loan at 15% over 10 months
// (repayable 112500, monthly 11250) with its full schedule in place.
func newRepaymentFixture(t *testing.T) *repaymentFixture {
	t.Helper()

	f := &repaymentFixture{
		loans:         testutil.NewMockLoanRepository(),
		installments:  testutil.NewMockInstallmentRepository(),
		payments:      testutil.NewMockPaymentRepository(),
		audit:         testutil.NewMockAuditRepository(),
		notifications: testutil.NewMockNotificationRepository(),
		accounts:      testutil.NewMockAccountRepository(),
		provider:      testutil.NewMockProvider(),
		borrowerID:    uuid.New(),
	}

	notification := NewNotificationService(f.notifications, f.accounts, nil, zerolog.Nop())
	f.service = NewRepaymentService(
		f.loans, f.installments, f.payments, f.audit, f.provider, notification, zerolog.Nop())

	loan := &domain.Loan{
		ApplicationNumber:  "KRD-20260301-ABC123",
		BorrowerID:         f.borrowerID,
		Purpose:            "working capital",
		AnnualInterestRate: decimal.NewFromFloat(0.15),
		RequestedAmount:    decimal.NewFromInt(100000),
		TenorMonths:        10,
		Status:             domain.LoanStatusActive,
	}
	loan.DeriveFigures(decimal.NewFromInt(100000))
	f.loan = f.loans.AddLoan(loan)

	schedule := domain.GenerateSchedule(f.loan, time.Now().AddDate(0, -1, 0))
	if err := f.installments.CreateBatch(context.Background(), schedule); err != nil {
		t.Fatalf("Failed to seed schedule: %v", err)
	}
	return f
}

func TestProcessRepayment_Success(t *testing.T) {
	f := newRepaymentFixture(t)

	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(11250),
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Payment.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected payment success, got %s", result.Payment.Status)
	}
	if !result.Payment.Reconciled || result.Payment.ReconciledAt == nil {
		t.Error("Expected payment marked reconciled")
	}
	if len(result.Allocations) != 1 || result.Allocations[0].InstallmentNumber != 1 {
		t.Fatalf("Expected one allocation against installment 1, got %+v", result.Allocations)
	}
	if !result.Overpayment.IsZero() {
		t.Errorf("Expected no overpayment, got %s", result.Overpayment)
	}
	if result.Completed {
		t.Error("Expected loan not completed after one installment")
	}

	// Interest is paid first within the installment: 1250 interest, 10000 principal.
	if !result.Payment.Allocation.Interest.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("Expected interest 1250, got %s", result.Payment.Allocation.Interest)
	}
	if !result.Payment.Allocation.Principal.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected principal 10000, got %s", result.Payment.Allocation.Principal)
	}

	if !result.Loan.TotalRepaid.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("Expected total repaid 11250, got %s", result.Loan.TotalRepaid)
	}
	if !result.Loan.OutstandingBalance.Equal(decimal.NewFromInt(101250)) {
		t.Errorf("Expected outstanding 101250, got %s", result.Loan.OutstandingBalance)
	}

	first, _ := f.installments.ListByLoan(context.Background(), f.loan.ID)
	if first[0].Status != domain.InstallmentStatusPaid {
		t.Errorf("Expected installment 1 paid, got %s", first[0].Status)
	}
	if len(f.provider.Debits) != 1 {
		t.Errorf("Expected one provider debit, got %d", len(f.provider.Debits))
	}
}

func TestProcessRepayment_PartialInstallment(t *testing.T) {
	f := newRepaymentFixture(t)

	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(5000),
		IdempotencyKey: "key-partial",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	installments, _ := f.installments.ListByLoan(context.Background(), f.loan.ID)
	if installments[0].Status != domain.InstallmentStatusPartial {
		t.Errorf("Expected installment 1 partial, got %s", installments[0].Status)
	}
	if !installments[0].PaidAmount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Expected paid amount 5000, got %s", installments[0].PaidAmount)
	}
	// All 1250 interest is covered first, the rest goes to principal.
	if !result.Payment.Allocation.Interest.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("Expected interest 1250, got %s", result.Payment.Allocation.Interest)
	}
	if !result.Payment.Allocation.Principal.Equal(decimal.NewFromInt(3750)) {
		t.Errorf("Expected principal 3750, got %s", result.Payment.Allocation.Principal)
	}
}

func TestProcessRepayment_SpansMultipleInstallments(t *testing.T) {
	f := newRepaymentFixture(t)

	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(25000),
		IdempotencyKey: "key-span",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Allocations) != 3 {
		t.Fatalf("Expected allocations across 3 installments, got %d", len(result.Allocations))
	}
	installments, _ := f.installments.ListByLoan(context.Background(), f.loan.ID)
	if installments[0].Status != domain.InstallmentStatusPaid || installments[1].Status != domain.InstallmentStatusPaid {
		t.Error("Expected first two installments paid")
	}
	if installments[2].Status != domain.InstallmentStatusPartial {
		t.Errorf("Expected installment 3 partial, got %s", installments[2].Status)
	}
	if !installments[2].PaidAmount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected installment 3 paid 2500, got %s", installments[2].PaidAmount)
	}
}

func TestProcessRepayment_IdempotentReplay(t *testing.T) {
	f := newRepaymentFixture(t)
	input := RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(11250),
		IdempotencyKey: "key-replay",
	}

	first, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("First attempt failed: %v", err)
	}

	second, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if !second.Replayed {
		t.Error("Expected replay to be flagged")
	}
	if second.Payment.ID != first.Payment.ID {
		t.Errorf("Expected same payment row, got %d and %d", first.Payment.ID, second.Payment.ID)
	}
	if len(f.provider.Debits) != 1 {
		t.Errorf("Expected money to move once, got %d debits", len(f.provider.Debits))
	}

	// Balances unchanged by the replay.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("Expected total repaid 11250 after replay, got %s", loan.TotalRepaid)
	}
}

func TestProcessRepayment_ReplayAfterCompletion(t *testing.T) {
	f := newRepaymentFixture(t)
	input := RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(112500),
		IdempotencyKey: "key-final",
	}

	first, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("First attempt failed: %v", err)
	}
	if !first.Completed {
		t.Fatal("Expected the payment to complete the loan")
	}

	// The loan is no longer active, but the retry carries the key of the
	// attempt that completed it: it must replay, not fail loan validation.
	second, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("Replay after completion failed: %v", err)
	}
	if !second.Replayed {
		t.Error("Expected replay to be flagged")
	}
	if !second.Completed {
		t.Error("Expected completed reported on the replay")
	}
	if second.Payment.ID != first.Payment.ID {
		t.Errorf("Expected same payment row, got %d and %d", first.Payment.ID, second.Payment.ID)
	}
	if len(f.provider.Debits) != 1 {
		t.Errorf("Expected money to move once, got %d debits", len(f.provider.Debits))
	}
}

func TestProcessRepayment_EngineFaultMarksFailed(t *testing.T) {
	f := newRepaymentFixture(t)
	f.loans.UpdateCASFn = func(ctx context.Context, loan *domain.Loan, expectedVersion int64) (*domain.Loan, error) {
		return nil, domain.ErrVersionConflict
	}

	input := RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(11250),
		IdempotencyKey: "key-fault",
	}

	_, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	// A decided attempt must not leave the payment stuck in processing:
	// that would pin the key and block every retry with in-flight errors.
	payment, err := f.payments.GetByIdempotencyKey(context.Background(), "key-fault")
	if err != nil {
		t.Fatalf("Expected payment row to exist: %v", err)
	}
	if payment.Status != domain.PaymentStatusFailed {
		t.Fatalf("Expected failed status after engine fault, got %s", payment.Status)
	}
	if payment.FailureReason == nil {
		t.Error("Expected a failure reason")
	}

	// Once the contention clears, the same key resumes and settles.
	f.loans.UpdateCASFn = nil
	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if result.Payment.ID != payment.ID {
		t.Errorf("Expected retry on payment %d, got %d", payment.ID, result.Payment.ID)
	}
	if result.Payment.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success after retry, got %s", result.Payment.Status)
	}
}

func TestProcessRepayment_InFlightKey(t *testing.T) {
	f := newRepaymentFixture(t)

	f.payments.AddPayment(&domain.Payment{
		LoanID:         f.loan.ID,
		AccountID:      f.borrowerID,
		IdempotencyKey: "key-busy",
		Reference:      "PAY-INFLIGHT",
		Type:           domain.PaymentTypeRepayment,
		Amount:         decimal.NewFromInt(500),
		Status:         domain.PaymentStatusProcessing,
	})

	_, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(500),
		IdempotencyKey: "key-busy",
	})
	if !errors.Is(err, domain.ErrIdempotencyInFlight) {
		t.Fatalf("Expected ErrIdempotencyInFlight, got %v", err)
	}
}

func TestProcessRepayment_OverpaymentCompletesLoan(t *testing.T) {
	f := newRepaymentFixture(t)

	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(112600),
		IdempotencyKey: "key-over",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.Completed {
		t.Error("Expected loan completed")
	}
	if !result.Overpayment.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected overpayment 100, got %s", result.Overpayment)
	}
	if !result.Payment.Allocation.Overpayment.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected allocation overpayment 100, got %s", result.Payment.Allocation.Overpayment)
	}
	if result.Loan.Status != domain.LoanStatusCompleted {
		t.Errorf("Expected status completed, got %s", result.Loan.Status)
	}
	if !result.Loan.OutstandingBalance.IsZero() {
		t.Errorf("Expected outstanding 0, got %s", result.Loan.OutstandingBalance)
	}

	// Completion is recorded in the history and audit log.
	history, _ := f.loans.GetStatusHistory(context.Background(), f.loan.ID)
	if len(history) != 1 || history[0].To != domain.LoanStatusCompleted {
		t.Errorf("Expected completion history entry, got %+v", history)
	}
	types := f.notifications.TypesFor(f.borrowerID)
	found := false
	for _, typ := range types {
		if typ == domain.NotificationLoanCompleted {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected LOAN_COMPLETED notification, got %v", types)
	}
}

func TestProcessRepayment_ProviderFailureThenRetry(t *testing.T) {
	f := newRepaymentFixture(t)
	f.provider.FailDebits = true

	input := RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(11250),
		IdempotencyKey: "key-retry",
	}

	_, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}

	failed, err := f.payments.GetByIdempotencyKey(context.Background(), "key-retry")
	if err != nil {
		t.Fatalf("Expected failed payment row to exist: %v", err)
	}
	if failed.Status != domain.PaymentStatusFailed {
		t.Errorf("Expected failed status, got %s", failed.Status)
	}
	if failed.FailureReason == nil {
		t.Error("Expected a failure reason")
	}

	// Balances untouched by the failed attempt.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.IsZero() {
		t.Errorf("Expected no repaid amount after failure, got %s", loan.TotalRepaid)
	}

	// A retry with the same key reuses the same payment row and succeeds.
	f.provider.FailDebits = false
	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if result.Payment.ID != failed.ID {
		t.Errorf("Expected retry on payment %d, got %d", failed.ID, result.Payment.ID)
	}
	if result.Payment.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success after retry, got %s", result.Payment.Status)
	}
	if len(f.provider.Debits) != 2 {
		t.Errorf("Expected two debit attempts, got %d", len(f.provider.Debits))
	}
}

func TestProcessRepayment_InstallmentConflictRetries(t *testing.T) {
	f := newRepaymentFixture(t)
	f.installments.ConflictOnce = true

	result, err := f.service.ProcessRepayment(context.Background(), f.borrowerID, RepaymentInput{
		LoanID:         f.loan.ID,
		Amount:         decimal.NewFromInt(11250),
		IdempotencyKey: "key-conflict",
	})
	if err != nil {
		t.Fatalf("Expected conflict to be retried, got %v", err)
	}
	if result.Payment.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success, got %s", result.Payment.Status)
	}
}

func TestProcessRepayment_Guards(t *testing.T) {
	f := newRepaymentFixture(t)
	ctx := context.Background()

	_, err := f.service.ProcessRepayment(ctx, f.borrowerID, RepaymentInput{
		LoanID: f.loan.ID, Amount: decimal.Zero, IdempotencyKey: "k",
	})
	if !errors.Is(err, domain.ErrPaymentAmountInvalid) {
		t.Errorf("Expected ErrPaymentAmountInvalid, got %v", err)
	}

	_, err = f.service.ProcessRepayment(ctx, f.borrowerID, RepaymentInput{
		LoanID: f.loan.ID, Amount: decimal.NewFromInt(100), IdempotencyKey: "  ",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for blank key, got %v", err)
	}

	_, err = f.service.ProcessRepayment(ctx, uuid.New(), RepaymentInput{
		LoanID: f.loan.ID, Amount: decimal.NewFromInt(100), IdempotencyKey: "k",
	})
	if !errors.Is(err, domain.ErrLoanNotOwned) {
		t.Errorf("Expected ErrLoanNotOwned, got %v", err)
	}

	pending := f.loans.AddLoan(&domain.Loan{
		BorrowerID: f.borrowerID, Status: domain.LoanStatusPending,
	})
	_, err = f.service.ProcessRepayment(ctx, f.borrowerID, RepaymentInput{
		LoanID: pending.ID, Amount: decimal.NewFromInt(100), IdempotencyKey: "k",
	})
	if !errors.Is(err, domain.ErrLoanNotActive) {
		t.Errorf("Expected ErrLoanNotActive, got %v", err)
	}
}

func TestSubmitManualProof(t *testing.T) {
	f := newRepaymentFixture(t)
	operatorID := uuid.New()
	f.accounts.AddAccount(&domain.Account{
		ID: operatorID, Email: "ops@kredia.io", Role: domain.RoleOperator, Active: true,
	})

	input := ManualProofInput{
		LoanID:            f.loan.ID,
		Amount:            decimal.NewFromInt(11250),
		IdempotencyKey:    "proof-1",
		SenderBank:        "First Bank",
		SenderName:        "Ada Borrower",
		TransferDate:      time.Now().AddDate(0, 0, -1),
		ExternalReference: "TRF-001",
	}

	payment, err := f.service.SubmitManualProof(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("Expected pending, got %s", payment.Status)
	}
	if payment.ManualProof == nil || payment.ManualProof.ExternalReference != "TRF-001" {
		t.Error("Expected manual proof bundle on the payment")
	}
	if len(f.provider.Debits) != 0 {
		t.Error("Expected no provider call for a manual proof")
	}

	// No balances move before verification.
	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.IsZero() {
		t.Errorf("Expected no repaid amount, got %s", loan.TotalRepaid)
	}

	// Operators are notified for review.
	types := f.notifications.TypesFor(operatorID)
	if len(types) != 1 || types[0] != domain.NotificationProofSubmitted {
		t.Errorf("Expected PROOF_SUBMITTED operator notification, got %v", types)
	}

	// Resubmitting the same key returns the existing payment.
	again, err := f.service.SubmitManualProof(context.Background(), f.borrowerID, input)
	if err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}
	if again.ID != payment.ID {
		t.Errorf("Expected same payment, got %d and %d", payment.ID, again.ID)
	}
}

func TestVerifyRepayment(t *testing.T) {
	f := newRepaymentFixture(t)
	operatorID := uuid.New()

	payment, err := f.service.SubmitManualProof(context.Background(), f.borrowerID, ManualProofInput{
		LoanID:            f.loan.ID,
		Amount:            decimal.NewFromInt(11250),
		IdempotencyKey:    "proof-verify",
		SenderBank:        "First Bank",
		SenderName:        "Ada Borrower",
		TransferDate:      time.Now(),
		ExternalReference: "TRF-002",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	result, err := f.service.VerifyRepayment(context.Background(), payment.ID, operatorID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if result.Payment.Status != domain.PaymentStatusSuccess {
		t.Errorf("Expected success, got %s", result.Payment.Status)
	}
	if result.Payment.VerifiedBy == nil || *result.Payment.VerifiedBy != operatorID {
		t.Error("Expected verifier recorded")
	}
	if !result.Loan.TotalRepaid.Equal(decimal.NewFromInt(11250)) {
		t.Errorf("Expected total repaid 11250, got %s", result.Loan.TotalRepaid)
	}
	if len(f.provider.Debits) != 0 {
		t.Error("Expected no provider debit: the money moved out of band")
	}

	// A second verification of the same payment is rejected.
	if _, err := f.service.VerifyRepayment(context.Background(), payment.ID, operatorID); !errors.Is(err, domain.ErrPaymentNotPending) {
		t.Errorf("Expected ErrPaymentNotPending, got %v", err)
	}
}

func TestRejectProof(t *testing.T) {
	f := newRepaymentFixture(t)
	operatorID := uuid.New()

	payment, err := f.service.SubmitManualProof(context.Background(), f.borrowerID, ManualProofInput{
		LoanID:            f.loan.ID,
		Amount:            decimal.NewFromInt(500),
		IdempotencyKey:    "proof-reject",
		SenderBank:        "First Bank",
		SenderName:        "Ada Borrower",
		TransferDate:      time.Now(),
		ExternalReference: "TRF-003",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rejected, err := f.service.RejectProof(context.Background(), payment.ID, operatorID, "reference not found on statement")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if rejected.Status != domain.PaymentStatusFailed {
		t.Errorf("Expected failed, got %s", rejected.Status)
	}
	if rejected.FailureReason == nil || *rejected.FailureReason != "reference not found on statement" {
		t.Error("Expected rejection reason recorded")
	}

	loan, _ := f.loans.GetByID(context.Background(), f.loan.ID)
	if !loan.TotalRepaid.IsZero() {
		t.Errorf("Expected balances untouched, got repaid %s", loan.TotalRepaid)
	}

	types := f.notifications.TypesFor(f.borrowerID)
	if len(types) != 1 || types[0] != domain.NotificationPaymentFailed {
		t.Errorf("Expected PAYMENT_FAILED notification, got %v", types)
	}

	if _, err := f.service.RejectProof(context.Background(), payment.ID, operatorID, "again"); !errors.Is(err, domain.ErrPaymentNotPending) {
		t.Errorf("Expected ErrPaymentNotPending on double reject, got %v", err)
	}
}

func TestGetSchedule_DerivesOverdue(t *testing.T) {
	f := newRepaymentFixture(t)

	schedule, err := f.service.GetSchedule(context.Background(), f.loan.ID, f.borrowerID, domain.RoleBorrower)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	// The schedule was seeded a month back, so the first installment is due.
	if schedule[0].Status != domain.InstallmentStatusOverdue {
		t.Errorf("Expected first installment overdue at read time, got %s", schedule[0].Status)
	}
	if schedule[len(schedule)-1].Status != domain.InstallmentStatusPending {
		t.Errorf("Expected last installment pending, got %s", schedule[len(schedule)-1].Status)
	}
}
