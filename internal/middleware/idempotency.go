package middleware

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/metrics"
)

// IdempotencyKeyHeader is the header carrying the client-supplied key.
const IdempotencyKeyHeader = "Idempotency-Key"

// Idempotency is the transport-level replay cache: the first response for a
// key is stored verbatim and replayed for every retry until expiry. The
// domain-level Payment idempotency key nests inside this cache.
type Idempotency struct {
	records domain.IdempotencyRepository
	ttl     time.Duration
}

// NewIdempotency creates the idempotency middleware with the default 24h TTL.
func NewIdempotency(records domain.IdempotencyRepository) *Idempotency {
	return &Idempotency{records: records, ttl: domain.DefaultIdempotencyTTL}
}

// Require returns a middleware for mutating critical routes. Requests
// without the header are rejected; replays return the stored response
// byte-identical to the first.
func (i *Idempotency) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(IdempotencyKeyHeader)
			if key == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key header is required")
			}

			ctx := c.Request().Context()
			if record, err := i.records.Get(ctx, key); err == nil {
				metrics.IdempotentReplays.Inc()
				return c.Blob(record.StatusCode, echo.MIMEApplicationJSON, record.ResponseBody)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			// Capture the response so it can be stored for replay.
			buf := new(bytes.Buffer)
			res := c.Response()
			capture := &captureWriter{ResponseWriter: res.Writer, body: buf}
			res.Writer = capture

			if err := next(c); err != nil {
				c.Error(err)
			}

			// Only terminal outcomes are cached. A conflict or server fault
			// is transient: pinning it would make every retry replay the
			// failure for the TTL instead of reaching the handler again.
			if res.Status == http.StatusConflict || res.Status >= http.StatusInternalServerError {
				return nil
			}

			record := &domain.IdempotencyRecord{
				Key:          key,
				Endpoint:     c.Path(),
				Method:       c.Request().Method,
				StatusCode:   res.Status,
				ResponseBody: buf.Bytes(),
				ExpiresAt:    time.Now().Add(i.ttl),
			}
			if accountID, ok := AccountID(c); ok {
				record.AccountID = &accountID
			}

			if err := i.records.Put(ctx, record); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
				log.Warn().Err(err).Str("key", key).Msg("Failed to store idempotency record")
			}
			return nil
		}
	}
}

// captureWriter tees the response body while it streams to the client.
type captureWriter struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if n, err := w.body.Write(b); err != nil {
		return n, err
	}
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *captureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("response writer does not support hijacking")
}

var _ io.Writer = (*captureWriter)(nil)
