package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kredia/kredia-backend/internal/crypto"
	"github.com/kredia/kredia-backend/internal/domain"
)

// AccountRepository implements domain.AccountRepository using PostgreSQL.
// The national ID is encrypted at this boundary; everything above it only
// ever sees ciphertext.
type AccountRepository struct {
	pool   *pgxpool.Pool
	cipher *crypto.FieldCipher
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(pool *pgxpool.Pool, cipher *crypto.FieldCipher) *AccountRepository {
	return &AccountRepository{pool: pool, cipher: cipher}
}

const accountColumns = `id, email, password_hash, full_name, role, active, national_id, id_verified, credit_score, created_at, updated_at`

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	var encryptedID *string
	if account.NationalID != nil {
		sealed, err := r.cipher.Encrypt(*account.NationalID)
		if err != nil {
			return nil, err
		}
		encryptedID = &sealed
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, full_name, role, active, national_id, id_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+accountColumns,
		account.ID, account.Email, account.PasswordHash, account.FullName,
		string(account.Role), account.Active, encryptedID, account.IDVerified,
	)

	created, err := r.scanAccount(row)
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := r.scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := r.scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// ListByRole retrieves active accounts with the given role
func (r *AccountRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = $1 AND active ORDER BY created_at`,
		string(role),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// UpdateCreditScore records the latest advisory credit score
func (r *AccountRepository) UpdateCreditScore(ctx context.Context, id uuid.UUID, score int32) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET credit_score = $2, updated_at = now() WHERE id = $1`, id, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Deactivate marks an account inactive
func (r *AccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		role        string
		nationalID  *string
		creditScore *int32
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.FullName,
		&role, &account.Active, &nationalID, &account.IDVerified, &creditScore,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Role = domain.Role(role)
	account.CreditScore = creditScore
	account.CreatedAt = createdAt
	account.UpdatedAt = updatedAt
	if nationalID != nil {
		plain, err := r.cipher.Decrypt(*nationalID)
		if err != nil {
			return nil, err
		}
		account.NationalID = &plain
	}
	return &account, nil
}
