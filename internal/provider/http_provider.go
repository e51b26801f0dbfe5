package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const maxTimeout = 30 * time.Second

// HTTPProvider talks JSON to the external payment provider. Timeouts and
// transport errors surface as errors; a well-formed failure response
// surfaces as Result{Success: false}.
type HTTPProvider struct {
	baseURL string
	secret  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPProvider creates a provider client with a bounded timeout.
// Timeouts above 30s are clamped.
func NewHTTPProvider(baseURL, secret string, timeout time.Duration, logger zerolog.Logger) *HTTPProvider {
	if timeout <= 0 || timeout > maxTimeout {
		timeout = maxTimeout
	}
	return &HTTPProvider{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "payment_provider").Logger(),
	}
}

// Transfer pushes money to a bank destination.
func (p *HTTPProvider) Transfer(ctx context.Context, req TransferRequest) (*Result, error) {
	return p.post(ctx, "/transfers", req.Reference, req)
}

// Debit pulls money from a borrower's funding source.
func (p *HTTPProvider) Debit(ctx context.Context, req DebitRequest) (*Result, error) {
	return p.post(ctx, "/debits", req.Reference, req)
}

type providerResponse struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

func (p *HTTPProvider) post(ctx context.Context, path, reference string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.secret)
	// The provider dedupes on this header, so retrying with the same
	// reference cannot double-move money.
	httpReq.Header.Set("X-Transaction-Reference", reference)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error().Err(err).Str("path", path).Str("reference", reference).Msg("Provider call failed")
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	var decoded providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	p.logger.Info().
		Str("path", path).
		Str("reference", reference).
		Bool("success", decoded.Status).
		Dur("latency", time.Since(start)).
		Msg("Provider call completed")

	return &Result{
		Success:           decoded.Status && resp.StatusCode < 300,
		ProviderReference: decoded.Reference,
		Message:           decoded.Message,
	}, nil
}
