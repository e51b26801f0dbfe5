package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/middleware"
)

// AuthService handles registration and login. Operator signup is gated by a
// shared secret so the public endpoint cannot mint operator accounts.
type AuthService struct {
	accountRepo    domain.AccountRepository
	tokens         *middleware.TokenManager
	operatorSecret string
	logger         zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accountRepo domain.AccountRepository,
	tokens *middleware.TokenManager,
	operatorSecret string,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		accountRepo:    accountRepo,
		tokens:         tokens,
		operatorSecret: operatorSecret,
		logger:         logger.With().Str("service", "auth").Logger(),
	}
}

// RegisterInput contains input for creating an account.
type RegisterInput struct {
	Email          string
	Password       string
	FullName       string
	NationalID     *string
	OperatorSecret *string
}

// AuthResult is a signed token with its account.
type AuthResult struct {
	Token   string          `json:"token"`
	Account *domain.Account `json:"account"`
}

// Register creates an account and signs its first token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || len(input.Password) < 8 || strings.TrimSpace(input.FullName) == "" {
		return nil, domain.ErrInvalidInput
	}

	role := domain.RoleBorrower
	if input.OperatorSecret != nil {
		if s.operatorSecret == "" || *input.OperatorSecret != s.operatorSecret {
			return nil, domain.ErrForbidden
		}
		role = domain.RoleOperator
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.FullName),
		Role:         role,
		Active:       true,
		NationalID:   input.NationalID,
		IDVerified:   input.NationalID != nil,
	}
	created, err := s.accountRepo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(created)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account_id", created.ID.String()).
		Str("role", string(created.Role)).
		Msg("Account registered")

	return &AuthResult{Token: token, Account: created}, nil
}

// Login verifies credentials and signs a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.accountRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !account.Active {
		return nil, domain.ErrAccountInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Account: account}, nil
}

// GetAccount returns the account behind an authenticated request.
func (s *AuthService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}
