package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
)

// InstallmentRepository implements domain.InstallmentRepository using
// PostgreSQL. Payment application is a conditional write gated on the
// previously read paid_amount, so two FIFO walks never double-fill a row.
type InstallmentRepository struct {
	pool *pgxpool.Pool
}

// NewInstallmentRepository creates a new InstallmentRepository
func NewInstallmentRepository(pool *pgxpool.Pool) *InstallmentRepository {
	return &InstallmentRepository{pool: pool}
}

const installmentColumns = `id, loan_id, installment_number, due_date, principal_share,
	interest_share, total_due, paid_amount, status, paid_at, created_at, updated_at`

// CreateBatch inserts a loan's full schedule in one transaction
func (r *InstallmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, inst := range installments {
		principal, err := decimalToPgNumeric(inst.PrincipalShare)
		if err != nil {
			return err
		}
		interest, _ := decimalToPgNumeric(inst.InterestShare)
		totalDue, _ := decimalToPgNumeric(inst.TotalDue)
		paid, _ := decimalToPgNumeric(inst.PaidAmount)

		_, err = tx.Exec(ctx, `
			INSERT INTO installments (loan_id, installment_number, due_date, principal_share,
				interest_share, total_due, paid_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			inst.LoanID, inst.Number, inst.DueDate, principal,
			interest, totalDue, paid, string(inst.Status),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListByLoan retrieves a loan's installments ordered by number
func (r *InstallmentRepository) ListByLoan(ctx context.Context, loanID int64) ([]*domain.Installment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE loan_id = $1 ORDER BY installment_number`,
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstallments(rows)
}

// ListPayable retrieves the loan's unpaid installments ordered by number,
// the FIFO order for allocation
func (r *InstallmentRepository) ListPayable(ctx context.Context, loanID int64) ([]*domain.Installment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+installmentColumns+` FROM installments
		WHERE loan_id = $1 AND status <> $2
		ORDER BY installment_number`,
		loanID, string(domain.InstallmentStatusPaid),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstallments(rows)
}

// ApplyPayment persists an installment fill only if the stored paid_amount
// still equals expectedPaid
func (r *InstallmentRepository) ApplyPayment(ctx context.Context, installment *domain.Installment, expectedPaid decimal.Decimal) error {
	paid, err := decimalToPgNumeric(installment.PaidAmount)
	if err != nil {
		return err
	}
	expected, err := decimalToPgNumeric(expectedPaid)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE installments SET paid_amount = $3, status = $4, paid_at = $5, updated_at = now()
		WHERE id = $1 AND paid_amount = $2`,
		installment.ID, expected, paid, string(installment.Status), installment.PaidAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstallmentConflict
	}
	return nil
}

func collectInstallments(rows pgx.Rows) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	for rows.Next() {
		var (
			inst      domain.Installment
			status    string
			principal pgtype.Numeric
			interest  pgtype.Numeric
			totalDue  pgtype.Numeric
			paid      pgtype.Numeric
			paidAt    *time.Time
		)
		err := rows.Scan(
			&inst.ID, &inst.LoanID, &inst.Number, &inst.DueDate, &principal,
			&interest, &totalDue, &paid, &status, &paidAt, &inst.CreatedAt, &inst.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		inst.PrincipalShare = pgNumericToDecimal(principal)
		inst.InterestShare = pgNumericToDecimal(interest)
		inst.TotalDue = pgNumericToDecimal(totalDue)
		inst.PaidAmount = pgNumericToDecimal(paid)
		inst.Status = domain.InstallmentStatus(status)
		inst.PaidAt = paidAt
		installments = append(installments, &inst)
	}
	return installments, rows.Err()
}
