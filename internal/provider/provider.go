// Package provider is the boundary to the out-of-process payment provider.
// Calls are idempotent at the provider by transaction reference, carry a
// bounded timeout, and report success or failure with a provider reference.
package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransferRequest asks the provider to push money to a bank account
// (disbursements and refunds).
type TransferRequest struct {
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	AccountNumber string          `json:"accountNumber"`
	BankCode      string          `json:"bankCode"`
	Narration     string          `json:"narration"`
}

// DebitRequest asks the provider to pull money from a borrower's funding
// source (direct repayments).
type DebitRequest struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	AccountID string          `json:"accountId"`
	Narration string          `json:"narration"`
}

// Result is the provider's answer. Success=false with a Message is an
// ordinary business failure, not a transport error.
type Result struct {
	Success           bool   `json:"success"`
	ProviderReference string `json:"providerReference"`
	Message           string `json:"message"`
}

// Provider is the narrow contract the engine depends on.
type Provider interface {
	Transfer(ctx context.Context, req TransferRequest) (*Result, error)
	Debit(ctx context.Context, req DebitRequest) (*Result, error)
}
