package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kredia/kredia-backend/internal/credit"
	"github.com/kredia/kredia-backend/internal/domain"
)

// CreditService runs advisory credit checks and records the score on the
// account. The result never gates any loan operation.
type CreditService struct {
	accountRepo domain.AccountRepository
	scorer      credit.Scorer
	logger      zerolog.Logger
}

// NewCreditService creates a new CreditService
func NewCreditService(accountRepo domain.AccountRepository, scorer credit.Scorer, logger zerolog.Logger) *CreditService {
	return &CreditService{
		accountRepo: accountRepo,
		scorer:      scorer,
		logger:      logger.With().Str("service", "credit").Logger(),
	}
}

// Report returns the account's last recorded score, or ErrNotFound when no
// check has run yet.
func (s *CreditService) Report(ctx context.Context, accountID uuid.UUID) (*credit.Report, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.CreditScore == nil {
		return nil, domain.ErrNotFound
	}
	return &credit.Report{
		Score:      *account.CreditScore,
		Decision:   credit.Grade(*account.CreditScore),
		IDVerified: account.IDVerified,
		CheckedAt:  account.UpdatedAt,
	}, nil
}

// Check scores the account and persists the result.
func (s *CreditService) Check(ctx context.Context, accountID uuid.UUID) (*credit.Report, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	score := s.scorer.Score(account.IDVerified)
	if err := s.accountRepo.UpdateCreditScore(ctx, accountID, score); err != nil {
		return nil, err
	}

	report := &credit.Report{
		Score:      score,
		Decision:   credit.Grade(score),
		IDVerified: account.IDVerified,
		CheckedAt:  time.Now(),
	}

	s.logger.Info().
		Str("account_id", accountID.String()).
		Int32("score", score).
		Str("decision", string(report.Decision)).
		Msg("Credit check completed")

	return report, nil
}
