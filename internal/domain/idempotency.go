package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultIdempotencyTTL is how long a stored response is replayed verbatim.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRecord caches the transport-level response for a mutating
// request. One record per key; reads return the stored response verbatim
// until expiry.
type IdempotencyRecord struct {
	Key          string     `json:"key"`
	Endpoint     string     `json:"endpoint"`
	Method       string     `json:"method"`
	StatusCode   int        `json:"statusCode"`
	ResponseBody []byte     `json:"responseBody"`
	AccountID    *uuid.UUID `json:"accountId,omitempty"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// IdempotencyRepository stores transport-level idempotency records.
type IdempotencyRepository interface {
	// Get returns the record for key, or ErrNotFound. Expired records are
	// treated as absent.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Put stores the record, overwriting any expired record with the same
	// key. A live record with the same key returns ErrAlreadyExists.
	Put(ctx context.Context, record *IdempotencyRecord) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
