package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kredia/kredia-backend/internal/domain"
)

// LoanRepository implements domain.LoanRepository using PostgreSQL. The
// version column carries the compare-and-set condition; decision records
// live in JSONB alongside the scalar balance columns.
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `id, application_number, borrower_id, purpose, annual_interest_rate,
	requested_amount, tenor_months, status, principal, total_interest, total_repayable,
	monthly_payment, total_repaid, outstanding_balance, version,
	approval, rejection, bank, disbursement, created_at, updated_at`

// Create creates a new loan application
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	rate, err := decimalToPgNumeric(loan.AnnualInterestRate)
	if err != nil {
		return nil, err
	}
	requested, err := decimalToPgNumeric(loan.RequestedAmount)
	if err != nil {
		return nil, err
	}
	principal, _ := decimalToPgNumeric(loan.Principal)
	totalInterest, _ := decimalToPgNumeric(loan.TotalInterest)
	totalRepayable, _ := decimalToPgNumeric(loan.TotalRepayable)
	monthlyPayment, _ := decimalToPgNumeric(loan.MonthlyPayment)
	totalRepaid, _ := decimalToPgNumeric(loan.TotalRepaid)
	outstanding, _ := decimalToPgNumeric(loan.OutstandingBalance)

	bank, err := marshalNullable(loan.Bank != nil, loan.Bank)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO loans (
			application_number, borrower_id, purpose, annual_interest_rate,
			requested_amount, tenor_months, status, principal, total_interest,
			total_repayable, monthly_payment, total_repaid, outstanding_balance,
			version, bank
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, $14)
		RETURNING `+loanColumns,
		loan.ApplicationNumber, loan.BorrowerID, loan.Purpose, rate,
		requested, loan.TenorMonths, string(loan.Status), principal, totalInterest,
		totalRepayable, monthlyPayment, totalRepaid, outstanding, bank,
	)
	return scanLoan(row)
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// GetByApplicationNumber retrieves a loan by its application number
func (r *LoanRepository) GetByApplicationNumber(ctx context.Context, number string) (*domain.Loan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE application_number = $1`, number)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// ListByBorrower retrieves a borrower's loans, newest first
func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE borrower_id = $1 ORDER BY created_at DESC`,
		borrowerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// CountOpenByBorrower counts the borrower's loans in an open status
func (r *LoanRepository) CountOpenByBorrower(ctx context.Context, borrowerID uuid.UUID) (int64, error) {
	statuses := make([]string, len(domain.OpenStatuses))
	for i, s := range domain.OpenStatuses {
		statuses[i] = string(s)
	}

	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM loans WHERE borrower_id = $1 AND status = ANY($2)`,
		borrowerID, statuses,
	).Scan(&count)
	return count, err
}

// UpdateCAS persists the loan's mutable fields only if the stored version
// still equals expectedVersion, incrementing the version in the same write.
func (r *LoanRepository) UpdateCAS(ctx context.Context, loan *domain.Loan, expectedVersion int64) (*domain.Loan, error) {
	principal, err := decimalToPgNumeric(loan.Principal)
	if err != nil {
		return nil, err
	}
	totalInterest, _ := decimalToPgNumeric(loan.TotalInterest)
	totalRepayable, _ := decimalToPgNumeric(loan.TotalRepayable)
	monthlyPayment, _ := decimalToPgNumeric(loan.MonthlyPayment)
	totalRepaid, _ := decimalToPgNumeric(loan.TotalRepaid)
	outstanding, _ := decimalToPgNumeric(loan.OutstandingBalance)

	approval, err := marshalNullable(loan.Approval != nil, loan.Approval)
	if err != nil {
		return nil, err
	}
	rejection, err := marshalNullable(loan.Rejection != nil, loan.Rejection)
	if err != nil {
		return nil, err
	}
	bank, err := marshalNullable(loan.Bank != nil, loan.Bank)
	if err != nil {
		return nil, err
	}
	disbursement, err := marshalNullable(loan.Disbursement != nil, loan.Disbursement)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE loans SET
			status = $3, principal = $4, total_interest = $5, total_repayable = $6,
			monthly_payment = $7, total_repaid = $8, outstanding_balance = $9,
			approval = $10, rejection = $11, bank = $12, disbursement = $13,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+loanColumns,
		loan.ID, expectedVersion, string(loan.Status), principal, totalInterest,
		totalRepayable, monthlyPayment, totalRepaid, outstanding,
		approval, rejection, bank, disbursement,
	)

	updated, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a lost race from a missing row.
			var exists bool
			if checkErr := r.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, loan.ID,
			).Scan(&exists); checkErr != nil {
				return nil, checkErr
			}
			if !exists {
				return nil, domain.ErrLoanNotFound
			}
			return nil, domain.ErrVersionConflict
		}
		if uniqueViolation(err, "loans_disbursement_reference_key") {
			return nil, domain.ErrDuplicateReference
		}
		return nil, err
	}
	return updated, nil
}

// AppendStatusHistory appends one entry to the loan's status history
func (r *LoanRepository) AppendStatusHistory(ctx context.Context, loanID int64, change domain.StatusChange) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO loan_status_history (loan_id, from_status, to_status, reason, performed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		loanID, string(change.From), string(change.To), change.Reason, change.PerformedBy, change.ChangedAt,
	)
	return err
}

// GetStatusHistory retrieves the loan's status history in order
func (r *LoanRepository) GetStatusHistory(ctx context.Context, loanID int64) ([]domain.StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT from_status, to_status, reason, performed_by, changed_at
		FROM loan_status_history WHERE loan_id = $1 ORDER BY changed_at, id`,
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var (
			change   domain.StatusChange
			from, to string
		)
		if err := rows.Scan(&from, &to, &change.Reason, &change.PerformedBy, &change.ChangedAt); err != nil {
			return nil, err
		}
		change.From = domain.LoanStatus(from)
		change.To = domain.LoanStatus(to)
		history = append(history, change)
	}
	return history, rows.Err()
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan           domain.Loan
		status         string
		rate           pgtype.Numeric
		requested      pgtype.Numeric
		principal      pgtype.Numeric
		totalInterest  pgtype.Numeric
		totalRepayable pgtype.Numeric
		monthlyPayment pgtype.Numeric
		totalRepaid    pgtype.Numeric
		outstanding    pgtype.Numeric
		approval       []byte
		rejection      []byte
		bank           []byte
		disbursement   []byte
		createdAt      time.Time
		updatedAt      time.Time
	)
	err := row.Scan(
		&loan.ID, &loan.ApplicationNumber, &loan.BorrowerID, &loan.Purpose, &rate,
		&requested, &loan.TenorMonths, &status, &principal, &totalInterest, &totalRepayable,
		&monthlyPayment, &totalRepaid, &outstanding, &loan.Version,
		&approval, &rejection, &bank, &disbursement, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.Status = domain.LoanStatus(status)
	loan.AnnualInterestRate = pgNumericToDecimal(rate)
	loan.RequestedAmount = pgNumericToDecimal(requested)
	loan.Principal = pgNumericToDecimal(principal)
	loan.TotalInterest = pgNumericToDecimal(totalInterest)
	loan.TotalRepayable = pgNumericToDecimal(totalRepayable)
	loan.MonthlyPayment = pgNumericToDecimal(monthlyPayment)
	loan.TotalRepaid = pgNumericToDecimal(totalRepaid)
	loan.OutstandingBalance = pgNumericToDecimal(outstanding)
	loan.CreatedAt = createdAt
	loan.UpdatedAt = updatedAt

	if err := unmarshalInto(approval, &loan.Approval); err != nil {
		return nil, err
	}
	if err := unmarshalInto(rejection, &loan.Rejection); err != nil {
		return nil, err
	}
	if err := unmarshalInto(bank, &loan.Bank); err != nil {
		return nil, err
	}
	if err := unmarshalInto(disbursement, &loan.Disbursement); err != nil {
		return nil, err
	}
	return &loan, nil
}

func unmarshalInto[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		*dst = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return err
	}
	*dst = &value
	return nil
}
