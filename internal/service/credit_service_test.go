package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kredia/kredia-backend/internal/credit"
	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/testutil"
)

func TestCreditCheck_PersistsScore(t *testing.T) {
	accounts := testutil.NewMockAccountRepository()
	svc := NewCreditService(accounts, testutil.FixedScorer{Value: 720}, zerolog.Nop())

	accountID := uuid.New()
	accounts.AddAccount(&domain.Account{ID: accountID, Email: "ada@kredia.io", Active: true, IDVerified: true})

	report, err := svc.Check(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Score != 720 {
		t.Errorf("Expected score 720, got %d", report.Score)
	}
	if report.Decision != credit.DecisionFavorable {
		t.Errorf("Expected favorable, got %s", report.Decision)
	}

	account, _ := accounts.GetByID(context.Background(), accountID)
	if account.CreditScore == nil || *account.CreditScore != 720 {
		t.Error("Expected score persisted on the account")
	}
}

func TestCreditReport(t *testing.T) {
	accounts := testutil.NewMockAccountRepository()
	svc := NewCreditService(accounts, testutil.FixedScorer{Value: 600}, zerolog.Nop())

	accountID := uuid.New()
	accounts.AddAccount(&domain.Account{ID: accountID, Email: "ada@kredia.io", Active: true})

	// No check yet.
	if _, err := svc.Report(context.Background(), accountID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before first check, got %v", err)
	}

	if _, err := svc.Check(context.Background(), accountID); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	report, err := svc.Report(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Expected report after check, got %v", err)
	}
	if report.Score != 600 || report.Decision != credit.DecisionConditional {
		t.Errorf("Expected conditional 600, got %s %d", report.Decision, report.Score)
	}
}
