// Package testutil provides in-memory mock repositories for service tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/provider"
)

// MockAccountRepository is a mock implementation of domain.AccountRepository
type MockAccountRepository struct {
	mu       sync.Mutex
	Accounts map[uuid.UUID]*domain.Account
	ByEmail  map[string]*domain.Account
}

// NewMockAccountRepository creates a new MockAccountRepository
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		Accounts: make(map[uuid.UUID]*domain.Account),
		ByEmail:  make(map[string]*domain.Account),
	}
}

// AddAccount adds an account to the mock repository (helper for tests)
func (m *MockAccountRepository) AddAccount(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	m.Accounts[account.ID] = account
	m.ByEmail[account.Email] = account
}

// Create stores a new account
func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByEmail[account.Email]; ok {
		return nil, domain.ErrEmailTaken
	}
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	m.Accounts[account.ID] = account
	m.ByEmail[account.Email] = account
	return account, nil
}

// GetByID retrieves an account by ID
func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.Accounts[id]; ok {
		return account, nil
	}
	return nil, domain.ErrAccountNotFound
}

// GetByEmail retrieves an account by email
func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.ByEmail[strings.ToLower(email)]; ok {
		return account, nil
	}
	return nil, domain.ErrAccountNotFound
}

// ListByRole lists active accounts with the given role
func (m *MockAccountRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Account
	for _, account := range m.Accounts {
		if account.Role == role && account.Active {
			result = append(result, account)
		}
	}
	return result, nil
}

// UpdateCreditScore stores a new credit score
func (m *MockAccountRepository) UpdateCreditScore(ctx context.Context, id uuid.UUID, score int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.Accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.CreditScore = &score
	account.UpdatedAt = time.Now()
	return nil
}

// Deactivate marks an account inactive
func (m *MockAccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.Accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Active = false
	return nil
}

// MockLoanRepository is a mock implementation of domain.LoanRepository with
// real compare-and-set semantics: UpdateCAS fails with ErrVersionConflict
// when the expected version is stale, exactly like the Postgres repository.
type MockLoanRepository struct {
	mu      sync.Mutex
	Loans   map[int64]*domain.Loan
	History map[int64][]domain.StatusChange
	nextID  int64

	// UpdateCASFn, when set, intercepts UpdateCAS (helper for conflict tests)
	UpdateCASFn func(ctx context.Context, loan *domain.Loan, expectedVersion int64) (*domain.Loan, error)
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans:   make(map[int64]*domain.Loan),
		History: make(map[int64][]domain.StatusChange),
	}
}

// AddLoan adds a loan to the mock repository (helper for tests)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) *domain.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.ID == 0 {
		m.nextID++
		loan.ID = m.nextID
	} else if loan.ID > m.nextID {
		m.nextID = loan.ID
	}
	m.Loans[loan.ID] = cloneLoan(loan)
	return loan
}

// Create stores a new loan
func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	loan.ID = m.nextID
	loan.Version = 0
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = loan.CreatedAt
	m.Loans[loan.ID] = cloneLoan(loan)
	return cloneLoan(loan), nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan, ok := m.Loans[id]; ok {
		return cloneLoan(loan), nil
	}
	return nil, domain.ErrLoanNotFound
}

// GetByApplicationNumber retrieves a loan by application number
func (m *MockLoanRepository) GetByApplicationNumber(ctx context.Context, number string) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, loan := range m.Loans {
		if loan.ApplicationNumber == number {
			return cloneLoan(loan), nil
		}
	}
	return nil, domain.ErrLoanNotFound
}

// ListByBorrower lists loans for a borrower
func (m *MockLoanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Loan
	for _, loan := range m.Loans {
		if loan.BorrowerID == borrowerID {
			result = append(result, cloneLoan(loan))
		}
	}
	return result, nil
}

// CountOpenByBorrower counts loans in open statuses
func (m *MockLoanRepository) CountOpenByBorrower(ctx context.Context, borrowerID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, loan := range m.Loans {
		if loan.BorrowerID != borrowerID {
			continue
		}
		for _, status := range domain.OpenStatuses {
			if loan.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

// UpdateCAS updates the loan only when the stored version matches
func (m *MockLoanRepository) UpdateCAS(ctx context.Context, loan *domain.Loan, expectedVersion int64) (*domain.Loan, error) {
	if m.UpdateCASFn != nil {
		return m.UpdateCASFn(ctx, loan, expectedVersion)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Loans[loan.ID]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	if stored.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if loan.Disbursement != nil {
		for _, other := range m.Loans {
			if other.ID != loan.ID && other.Disbursement != nil &&
				other.Disbursement.Reference == loan.Disbursement.Reference {
				return nil, domain.ErrDuplicateReference
			}
		}
	}
	updated := cloneLoan(loan)
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = time.Now()
	m.Loans[loan.ID] = updated
	return cloneLoan(updated), nil
}

// AppendStatusHistory appends a status change
func (m *MockLoanRepository) AppendStatusHistory(ctx context.Context, loanID int64, change domain.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.History[loanID] = append(m.History[loanID], change)
	return nil
}

// GetStatusHistory returns the status history for a loan
func (m *MockLoanRepository) GetStatusHistory(ctx context.Context, loanID int64) ([]domain.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StatusChange(nil), m.History[loanID]...), nil
}

func cloneLoan(loan *domain.Loan) *domain.Loan {
	c := *loan
	return &c
}

// MockInstallmentRepository is a mock implementation of
// domain.InstallmentRepository with the same conditional-write semantics as
// the Postgres repository: ApplyPayment fails with ErrInstallmentConflict
// when the stored paidAmount no longer matches the caller's read.
type MockInstallmentRepository struct {
	mu           sync.Mutex
	Installments map[int64]*domain.Installment
	nextID       int64

	// ConflictOnce forces the next ApplyPayment to fail with a conflict
	// (helper for retry tests)
	ConflictOnce bool
}

// NewMockInstallmentRepository creates a new MockInstallmentRepository
func NewMockInstallmentRepository() *MockInstallmentRepository {
	return &MockInstallmentRepository{Installments: make(map[int64]*domain.Installment)}
}

// CreateBatch stores a schedule
func (m *MockInstallmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range installments {
		m.nextID++
		inst.ID = m.nextID
		inst.CreatedAt = time.Now()
		inst.UpdatedAt = inst.CreatedAt
		c := *inst
		m.Installments[inst.ID] = &c
	}
	return nil
}

// ListByLoan lists installments ordered by number
func (m *MockInstallmentRepository) ListByLoan(ctx context.Context, loanID int64) ([]*domain.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedByNumber(loanID, false), nil
}

// ListPayable lists unpaid installments ordered by number
func (m *MockInstallmentRepository) ListPayable(ctx context.Context, loanID int64) ([]*domain.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedByNumber(loanID, true), nil
}

func (m *MockInstallmentRepository) sortedByNumber(loanID int64, payableOnly bool) []*domain.Installment {
	var result []*domain.Installment
	for _, inst := range m.Installments {
		if inst.LoanID != loanID {
			continue
		}
		if payableOnly && inst.Status == domain.InstallmentStatusPaid {
			continue
		}
		c := *inst
		result = append(result, &c)
	}
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].Number < result[j-1].Number; j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result
}

// ApplyPayment updates an installment only when paidAmount is unchanged
func (m *MockInstallmentRepository) ApplyPayment(ctx context.Context, installment *domain.Installment, expectedPaid decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConflictOnce {
		m.ConflictOnce = false
		return domain.ErrInstallmentConflict
	}
	stored, ok := m.Installments[installment.ID]
	if !ok {
		return domain.ErrInstallmentNotFound
	}
	if !stored.PaidAmount.Equal(expectedPaid) {
		return domain.ErrInstallmentConflict
	}
	c := *installment
	c.UpdatedAt = time.Now()
	m.Installments[installment.ID] = &c
	return nil
}

// MockPaymentRepository is a mock implementation of domain.PaymentRepository
type MockPaymentRepository struct {
	mu       sync.Mutex
	Payments map[int64]*domain.Payment
	nextID   int64
}

// NewMockPaymentRepository creates a new MockPaymentRepository
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{Payments: make(map[int64]*domain.Payment)}
}

// AddPayment adds a payment to the mock repository (helper for tests)
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment.ID == 0 {
		m.nextID++
		payment.ID = m.nextID
	} else if payment.ID > m.nextID {
		m.nextID = payment.ID
	}
	c := *payment
	m.Payments[payment.ID] = &c
	return payment
}

// Create stores a new payment, enforcing the unique constraints
func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.IdempotencyKey == payment.IdempotencyKey {
			return nil, domain.ErrDuplicateIdempotency
		}
		if p.Reference == payment.Reference {
			return nil, domain.ErrDuplicateReference
		}
	}
	m.nextID++
	payment.ID = m.nextID
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	c := *payment
	m.Payments[payment.ID] = &c
	return payment, nil
}

// GetByID retrieves a payment by ID
func (m *MockPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Payments[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, domain.ErrPaymentNotFound
}

// GetByIdempotencyKey retrieves a payment by idempotency key
func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.IdempotencyKey == key {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

// ListByLoan lists payments for a loan
func (m *MockPaymentRepository) ListByLoan(ctx context.Context, loanID int64) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Payment
	for _, p := range m.Payments {
		if p.LoanID == loanID {
			c := *p
			result = append(result, &c)
		}
	}
	return result, nil
}

// ListByAccount lists payments for an account with paging
func (m *MockPaymentRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*domain.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.Payment
	for _, p := range m.Payments {
		if p.AccountID == accountID {
			c := *p
			all = append(all, &c)
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// Update persists mutable payment fields
func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Payments[payment.ID]; !ok {
		return nil, domain.ErrPaymentNotFound
	}
	payment.UpdatedAt = time.Now()
	c := *payment
	m.Payments[payment.ID] = &c
	return payment, nil
}

// MarkOverpaymentRefunded sets the flag only if currently unset
func (m *MockPaymentRepository) MarkOverpaymentRefunded(ctx context.Context, paymentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Payments[paymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if p.OverpaymentRefunded {
		return domain.ErrAlreadyRefunded
	}
	p.OverpaymentRefunded = true
	return nil
}

// GetRefundOf returns the refund whose source is sourcePaymentID
func (m *MockPaymentRepository) GetRefundOf(ctx context.Context, sourcePaymentID int64) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.Type == domain.PaymentTypeRefund && p.RefundOfPaymentID != nil &&
			*p.RefundOfPaymentID == sourcePaymentID && p.Status != domain.PaymentStatusFailed {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

// SumSuccessfulRefunds totals success refunds against a loan
func (m *MockPaymentRepository) SumSuccessfulRefunds(ctx context.Context, loanID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, p := range m.Payments {
		if p.LoanID == loanID && p.Type == domain.PaymentTypeRefund && p.Status == domain.PaymentStatusSuccess {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// MockAuditRepository is a mock implementation of domain.AuditRepository
type MockAuditRepository struct {
	mu      sync.Mutex
	Entries []*domain.AuditEntry
}

// NewMockAuditRepository creates a new MockAuditRepository
func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

// Append appends an audit entry
func (m *MockAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.CreatedAt = time.Now()
	m.Entries = append(m.Entries, entry)
	return nil
}

// ListByEntity lists entries for an entity
func (m *MockAuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.AuditEntry
	for _, e := range m.Entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			result = append(result, e)
		}
	}
	return result, nil
}

// Actions returns the recorded action names in order (helper for tests)
func (m *MockAuditRepository) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// MockNotificationRepository is a mock implementation of domain.NotificationRepository
type MockNotificationRepository struct {
	mu            sync.Mutex
	Notifications map[int64]*domain.Notification
	nextID        int64
}

// NewMockNotificationRepository creates a new MockNotificationRepository
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{Notifications: make(map[int64]*domain.Notification)}
}

// Create stores a notification
func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = m.nextID
	n.CreatedAt = time.Now()
	c := *n
	m.Notifications[n.ID] = &c
	return n, nil
}

// GetByID retrieves a notification by ID
func (m *MockNotificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.Notifications[id]; ok {
		c := *n
		return &c, nil
	}
	return nil, domain.ErrNotificationNotFound
}

// ListByAccount lists notifications for an account with paging
func (m *MockNotificationRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*domain.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.Notification
	for _, n := range m.Notifications {
		if n.AccountID == accountID {
			c := *n
			all = append(all, &c)
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// CountUnread counts unread notifications
func (m *MockNotificationRepository) CountUnread(ctx context.Context, accountID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.Notifications {
		if n.AccountID == accountID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// MarkRead marks one notification read
func (m *MockNotificationRepository) MarkRead(ctx context.Context, id int64, accountID uuid.UUID) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.Notifications[id]
	if !ok || n.AccountID != accountID {
		return nil, domain.ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		now := time.Now()
		n.ReadAt = &now
	}
	c := *n
	return &c, nil
}

// MarkAllRead marks every unread notification read
func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var count int64
	for _, n := range m.Notifications {
		if n.AccountID == accountID && n.ReadAt == nil {
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

// TypesFor returns the notification types recorded for an account (helper for tests)
func (m *MockNotificationRepository) TypesFor(accountID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.Notifications))
	for id, n := range m.Notifications {
		if n.AccountID == accountID {
			ids = append(ids, id)
		}
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	types := make([]string, 0, len(ids))
	for _, id := range ids {
		types = append(types, m.Notifications[id].Type)
	}
	return types
}

// MockIdempotencyRepository is a mock implementation of domain.IdempotencyRepository
type MockIdempotencyRepository struct {
	mu      sync.Mutex
	Records map[string]*domain.IdempotencyRecord
}

// NewMockIdempotencyRepository creates a new MockIdempotencyRepository
func NewMockIdempotencyRepository() *MockIdempotencyRepository {
	return &MockIdempotencyRepository{Records: make(map[string]*domain.IdempotencyRecord)}
}

// Get returns the live record for key
func (m *MockIdempotencyRepository) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.Records[key]
	if !ok || time.Now().After(record.ExpiresAt) {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

// Put stores the record, overwriting only expired records
func (m *MockIdempotencyRepository) Put(ctx context.Context, record *domain.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.Records[record.Key]; ok && time.Now().Before(existing.ExpiresAt) {
		return domain.ErrAlreadyExists
	}
	record.CreatedAt = time.Now()
	m.Records[record.Key] = record
	return nil
}

// DeleteExpired removes expired records
func (m *MockIdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for key, record := range m.Records {
		if now.After(record.ExpiresAt) {
			delete(m.Records, key)
			count++
		}
	}
	return count, nil
}

// MockProvider is a scriptable payment provider. The default behavior is
// success with a generated provider reference.
type MockProvider struct {
	mu sync.Mutex

	// FailTransfers / FailDebits make calls return business failures
	FailTransfers bool
	FailDebits    bool
	// FailureMessage is the message on scripted failures
	FailureMessage string
	// TransferErr / DebitErr make calls return transport errors
	TransferErr error
	DebitErr    error

	Transfers []provider.TransferRequest
	Debits    []provider.DebitRequest
}

// NewMockProvider creates a provider that succeeds by default
func NewMockProvider() *MockProvider {
	return &MockProvider{FailureMessage: "insufficient funds"}
}

// Transfer records the request and returns the scripted result
func (m *MockProvider) Transfer(ctx context.Context, req provider.TransferRequest) (*provider.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transfers = append(m.Transfers, req)
	if m.TransferErr != nil {
		return nil, m.TransferErr
	}
	if m.FailTransfers {
		return &provider.Result{Success: false, Message: m.FailureMessage}, nil
	}
	return &provider.Result{Success: true, ProviderReference: "prov-" + req.Reference}, nil
}

// Debit records the request and returns the scripted result
func (m *MockProvider) Debit(ctx context.Context, req provider.DebitRequest) (*provider.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Debits = append(m.Debits, req)
	if m.DebitErr != nil {
		return nil, m.DebitErr
	}
	if m.FailDebits {
		return &provider.Result{Success: false, Message: m.FailureMessage}, nil
	}
	return &provider.Result{Success: true, ProviderReference: "prov-" + req.Reference}, nil
}

// FixedScorer always returns the same credit score
type FixedScorer struct {
	Value int32
}

// Score returns the fixed value
func (s FixedScorer) Score(idVerified bool) int32 {
	return s.Value
}
