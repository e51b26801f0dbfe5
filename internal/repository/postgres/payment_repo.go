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
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
)

// PaymentRepository implements domain.PaymentRepository using PostgreSQL.
// Unique indexes on idempotency_key and reference are the durable half of
// the idempotency guarantee.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `id, loan_id, account_id, idempotency_key, reference, type, amount,
	status, failure_reason, provider_reference, reconciled, reconciled_at, allocation,
	manual_proof, verified_by, verified_at, refund_of_payment_id, overpayment_refunded,
	created_at, updated_at`

// Create creates a new payment, enforcing the unique idempotency key and
// reference
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	amount, err := decimalToPgNumeric(payment.Amount)
	if err != nil {
		return nil, err
	}
	manualProof, err := marshalNullable(payment.ManualProof != nil, payment.ManualProof)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (loan_id, account_id, idempotency_key, reference, type, amount,
			status, manual_proof, refund_of_payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+paymentColumns,
		payment.LoanID, payment.AccountID, payment.IdempotencyKey, payment.Reference,
		string(payment.Type), amount, string(payment.Status), manualProof, payment.RefundOfPaymentID,
	)

	created, err := scanPayment(row)
	if err != nil {
		if uniqueViolation(err, "payments_idempotency_key_key") {
			return nil, domain.ErrDuplicateIdempotency
		}
		if uniqueViolation(err, "payments_reference_key") {
			return nil, domain.ErrDuplicateReference
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// GetByIdempotencyKey retrieves a payment by its idempotency key
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListByLoan retrieves a loan's payments, newest first
func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID int64) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = $1 ORDER BY created_at DESC`,
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListByAccount retrieves an account's payments with pagination
func (r *PaymentRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*domain.Payment, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM payments WHERE account_id = $1`, accountID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Update persists a payment's mutable fields
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	allocation, err := marshalNullable(payment.Allocation != nil, payment.Allocation)
	if err != nil {
		return nil, err
	}
	manualProof, err := marshalNullable(payment.ManualProof != nil, payment.ManualProof)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE payments SET
			status = $2, failure_reason = $3, provider_reference = $4,
			reconciled = $5, reconciled_at = $6, allocation = $7, manual_proof = $8,
			verified_by = $9, verified_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns,
		payment.ID, string(payment.Status), payment.FailureReason, payment.ProviderRef,
		payment.Reconciled, payment.ReconciledAt, allocation, manualProof,
		payment.VerifiedBy, payment.VerifiedAt,
	)

	updated, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return updated, nil
}

// MarkOverpaymentRefunded sets the flag only if it is currently unset
func (r *PaymentRepository) MarkOverpaymentRefunded(ctx context.Context, paymentID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET overpayment_refunded = true, updated_at = now()
		WHERE id = $1 AND NOT overpayment_refunded`,
		paymentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, paymentID,
		).Scan(&exists); checkErr != nil {
			return checkErr
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}
		return domain.ErrAlreadyRefunded
	}
	return nil
}

// GetRefundOf retrieves the refund whose source is sourcePaymentID
func (r *PaymentRepository) GetRefundOf(ctx context.Context, sourcePaymentID int64) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE refund_of_payment_id = $1 AND type = $2 AND status <> $3
		ORDER BY created_at LIMIT 1`,
		sourcePaymentID, string(domain.PaymentTypeRefund), string(domain.PaymentStatusFailed),
	)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// SumSuccessfulRefunds sums success refunds against a loan
func (r *PaymentRepository) SumSuccessfulRefunds(ctx context.Context, loanID int64) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0) FROM payments
		WHERE loan_id = $1 AND type = $2 AND status = $3`,
		loanID, string(domain.PaymentTypeRefund), string(domain.PaymentStatusSuccess),
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return pgNumericToDecimal(sum), nil
}

func collectPayments(rows pgx.Rows) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment     domain.Payment
		paymentType string
		status      string
		amount      pgtype.Numeric
		allocation  []byte
		manualProof []byte
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(
		&payment.ID, &payment.LoanID, &payment.AccountID, &payment.IdempotencyKey,
		&payment.Reference, &paymentType, &amount, &status, &payment.FailureReason,
		&payment.ProviderRef, &payment.Reconciled, &payment.ReconciledAt, &allocation,
		&manualProof, &payment.VerifiedBy, &payment.VerifiedAt, &payment.RefundOfPaymentID,
		&payment.OverpaymentRefunded, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Type = domain.PaymentType(paymentType)
	payment.Status = domain.PaymentStatus(status)
	payment.Amount = pgNumericToDecimal(amount)
	payment.CreatedAt = createdAt
	payment.UpdatedAt = updatedAt

	if err := unmarshalInto(allocation, &payment.Allocation); err != nil {
		return nil, err
	}
	if err := unmarshalInto(manualProof, &payment.ManualProof); err != nil {
		return nil, err
	}
	return &payment, nil
}

// marshalNullable marshals v for a nullable JSONB column when present is
// true, storing SQL NULL otherwise.
func marshalNullable(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}
