package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/testutil"
)

func newIdempotentEcho(records *testutil.MockIdempotencyRepository, calls *int) *echo.Echo {
	e := echo.New()
	idem := NewIdempotency(records)
	e.POST("/pay", func(c echo.Context) error {
		*calls++
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    map[string]int{"attempt": *calls},
		})
	}, idem.Require())
	return e
}

func TestIdempotency_MissingHeader(t *testing.T) {
	var calls int
	e := newIdempotentEcho(testutil.NewMockIdempotencyRepository(), &calls)

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	if calls != 0 {
		t.Errorf("Expected handler not to run, got %d calls", calls)
	}
}

func TestIdempotency_StoresFirstResponse(t *testing.T) {
	records := testutil.NewMockIdempotencyRepository()
	var calls int
	e := newIdempotentEcho(records, &calls)

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("Expected 1 handler call, got %d", calls)
	}

	record, ok := records.Records["key-1"]
	if !ok {
		t.Fatal("Expected response stored under the key")
	}
	if record.StatusCode != http.StatusCreated {
		t.Errorf("Expected stored status 201, got %d", record.StatusCode)
	}
	if string(record.ResponseBody) != rec.Body.String() {
		t.Errorf("Expected stored body to match the response, got %s", record.ResponseBody)
	}
	if record.Method != http.MethodPost || record.Endpoint != "/pay" {
		t.Errorf("Expected method and endpoint recorded, got %s %s", record.Method, record.Endpoint)
	}
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	records := testutil.NewMockIdempotencyRepository()
	var calls int
	e := newIdempotentEcho(records, &calls)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	e.ServeHTTP(first, req)

	// The retry must not reach the handler and must return the stored bytes.
	second := httptest.NewRecorder()
	retry := httptest.NewRequest(http.MethodPost, "/pay", nil)
	retry.Header.Set(IdempotencyKeyHeader, "key-1")
	e.ServeHTTP(second, retry)

	if calls != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls)
	}
	if second.Code != first.Code {
		t.Errorf("Expected replayed status %d, got %d", first.Code, second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("Expected byte-identical replay, got %s vs %s", second.Body.String(), first.Body.String())
	}
}

func TestIdempotency_DistinctKeysProcessSeparately(t *testing.T) {
	records := testutil.NewMockIdempotencyRepository()
	var calls int
	e := newIdempotentEcho(records, &calls)

	for _, key := range []string{"key-1", "key-2"} {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.Header.Set(IdempotencyKeyHeader, key)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	if calls != 2 {
		t.Errorf("Expected 2 handler calls for distinct keys, got %d", calls)
	}
}

func TestIdempotency_ExpiredRecordReprocesses(t *testing.T) {
	records := testutil.NewMockIdempotencyRepository()
	var calls int
	e := newIdempotentEcho(records, &calls)

	records.Records["key-1"] = &domain.IdempotencyRecord{
		Key:          "key-1",
		StatusCode:   http.StatusCreated,
		ResponseBody: []byte(`{"stale":true}`),
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if calls != 1 {
		t.Errorf("Expected expired record to let the handler run, got %d calls", calls)
	}
	if rec.Body.String() == `{"stale":true}` {
		t.Error("Expected a fresh response, got the stale body")
	}

	// The fresh response replaces the expired record.
	record := records.Records["key-1"]
	if time.Now().After(record.ExpiresAt) {
		t.Error("Expected the stored record to carry a fresh expiry")
	}
}

func TestIdempotency_StoresErrorResponses(t *testing.T) {
	records := testutil.NewMockIdempotencyRepository()
	e := echo.New()
	idem := NewIdempotency(records)
	var calls int
	e.POST("/pay", func(c echo.Context) error {
		calls++
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "amount must be positive")
	}, idem.Require())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Request %d: expected status 422, got %d", i, rec.Code)
		}
	}

	// The failure is replayed too; the client must issue a new key to retry.
	if calls != 1 {
		t.Errorf("Expected 1 handler call, got %d", calls)
	}
}

func TestIdempotency_TransientOutcomesNotCached(t *testing.T) {
	for name, status := range map[string]int{
		"conflict":     http.StatusConflict,
		"server fault": http.StatusInternalServerError,
	} {
		t.Run(name, func(t *testing.T) {
			records := testutil.NewMockIdempotencyRepository()
			e := echo.New()
			idem := NewIdempotency(records)
			var calls int
			e.POST("/pay", func(c echo.Context) error {
				calls++
				if calls == 1 {
					return echo.NewHTTPError(status, "try again")
				}
				return c.JSON(http.StatusCreated, map[string]bool{"success": true})
			}, idem.Require())

			first := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/pay", nil)
			req.Header.Set(IdempotencyKeyHeader, "key-1")
			e.ServeHTTP(first, req)

			if first.Code != status {
				t.Fatalf("Expected status %d, got %d", status, first.Code)
			}
			if _, ok := records.Records["key-1"]; ok {
				t.Fatal("Expected transient outcome not to be stored")
			}

			// The same key reaches the handler again and succeeds.
			second := httptest.NewRecorder()
			retry := httptest.NewRequest(http.MethodPost, "/pay", nil)
			retry.Header.Set(IdempotencyKeyHeader, "key-1")
			e.ServeHTTP(second, retry)

			if calls != 2 {
				t.Fatalf("Expected the retry to reach the handler, got %d calls", calls)
			}
			if second.Code != http.StatusCreated {
				t.Errorf("Expected status 201 on retry, got %d", second.Code)
			}
			if record, ok := records.Records["key-1"]; !ok || record.StatusCode != http.StatusCreated {
				t.Error("Expected the terminal response stored for replay")
			}
		})
	}
}
