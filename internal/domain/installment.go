package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrInstallmentConflict = errors.New("installment was modified concurrently")
)

// InstallmentStatus derives from paidAmount and dueDate. overdue applies
// only when the installment is not fully paid and the due date has passed.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPartial InstallmentStatus = "partial"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

// Installment is one scheduled repayment slice of a loan. (LoanID, Number)
// is unique per loan; paidAmount never exceeds TotalDue.
type Installment struct {
	ID             int64             `json:"id"`
	LoanID         int64             `json:"loanId"`
	Number         int32             `json:"installmentNumber"`
	DueDate        time.Time         `json:"dueDate"`
	PrincipalShare decimal.Decimal   `json:"principalShare"`
	InterestShare  decimal.Decimal   `json:"interestShare"`
	TotalDue       decimal.Decimal   `json:"totalDue"`
	PaidAmount     decimal.Decimal   `json:"paidAmount"`
	Status         InstallmentStatus `json:"status"`
	PaidAt         *time.Time        `json:"paidAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Remaining is the unpaid portion of the installment.
func (i *Installment) Remaining() decimal.Decimal {
	return i.TotalDue.Sub(i.PaidAmount)
}

// EffectiveStatus derives the status at a point in time. Persisted status is
// authoritative for paid/partial; overdue is a read-time derivation.
func (i *Installment) EffectiveStatus(now time.Time) InstallmentStatus {
	if i.Status == InstallmentStatusPaid {
		return InstallmentStatusPaid
	}
	if now.After(i.DueDate) {
		return InstallmentStatusOverdue
	}
	return i.Status
}

// GenerateSchedule builds the repayment schedule for a disbursed loan.
// Shares are round2(principal/N) and round2(interest/N); the last
// installment absorbs the rounding residue so the per-loan sums hold
// exactly. Due dates step one month at a time from the disbursement date.
func GenerateSchedule(loan *Loan, disbursedAt time.Time) []*Installment {
	n := int(loan.TenorMonths)
	months := decimal.NewFromInt(int64(n))
	principalShare := Round2(loan.Principal.Div(months))
	interestShare := Round2(loan.TotalInterest.Div(months))

	installments := make([]*Installment, 0, n)
	principalUsed := decimal.Zero
	interestUsed := decimal.Zero

	for i := 1; i <= n; i++ {
		p, in := principalShare, interestShare
		if i == n {
			p = Round2(loan.Principal.Sub(principalUsed))
			in = Round2(loan.TotalInterest.Sub(interestUsed))
		}
		principalUsed = principalUsed.Add(p)
		interestUsed = interestUsed.Add(in)

		installments = append(installments, &Installment{
			LoanID:         loan.ID,
			Number:         int32(i),
			DueDate:        disbursedAt.AddDate(0, i, 0),
			PrincipalShare: p,
			InterestShare:  in,
			TotalDue:       p.Add(in),
			PaidAmount:     decimal.Zero,
			Status:         InstallmentStatusPending,
		})
	}
	return installments
}

// InstallmentRepository provides durable installment storage. Updates are
// per-document conditional writes gated on the previously read paidAmount.
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, installments []*Installment) error
	ListByLoan(ctx context.Context, loanID int64) ([]*Installment, error)
	// ListPayable returns installments in {pending, partial, overdue}
	// ordered by installment number ascending, for FIFO allocation.
	ListPayable(ctx context.Context, loanID int64) ([]*Installment, error)
	// ApplyPayment sets paidAmount/status/paidAt only if the stored
	// paidAmount still equals expectedPaid; returns ErrInstallmentConflict
	// otherwise.
	ApplyPayment(ctx context.Context, installment *Installment, expectedPaid decimal.Decimal) error
}
