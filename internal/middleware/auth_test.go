package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/domain"
)

func testAccount(role domain.Role) *domain.Account {
	return &domain.Account{
		ID:    uuid.New(),
		Email: "ada@kredia.io",
		Role:  role,
	}
}

func TestTokenManager_IssueValidate(t *testing.T) {
	tokens := NewTokenManager("test-signing-secret", time.Hour)
	account := testAccount(domain.RoleBorrower)

	token, err := tokens.Issue(account)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a signed token")
	}

	accountID, role, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if accountID != account.ID {
		t.Errorf("Expected account ID %s, got %s", account.ID, accountID)
	}
	if role != domain.RoleBorrower {
		t.Errorf("Expected borrower role, got %s", role)
	}
}

func TestTokenManager_RejectsBadTokens(t *testing.T) {
	tokens := NewTokenManager("test-signing-secret", time.Hour)
	account := testAccount(domain.RoleBorrower)

	t.Run("garbage token", func(t *testing.T) {
		if _, _, err := tokens.Validate("not-a-token"); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("a-different-secret", time.Hour)
		token, err := other.Issue(account)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, _, err := tokens.Validate(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenManager("test-signing-secret", -time.Minute)
		token, err := expired.Issue(account)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, _, err := tokens.Validate(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	e := echo.New()
	tokens := NewTokenManager("test-signing-secret", time.Hour)
	auth := NewAuthMiddleware(tokens)
	account := testAccount(domain.RoleBorrower)

	token, err := tokens.Issue(account)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	handler := auth.Authenticate()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	t.Run("valid token sets context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(c); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		accountID, ok := AccountID(c)
		if !ok || accountID != account.ID {
			t.Errorf("Expected account ID %s in context, got %s (ok=%v)", account.ID, accountID, ok)
		}
		if role, ok := c.Get(RoleKey).(domain.Role); !ok || role != domain.RoleBorrower {
			t.Errorf("Expected borrower role in context, got %v", c.Get(RoleKey))
		}
	})

	rejections := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", token},
		{"wrong scheme", "Basic " + token},
		{"tampered token", "Bearer " + token + "x"},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler(c)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("Expected HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", httpErr.Code)
			}
		})
	}
}

func TestRequireOperator(t *testing.T) {
	e := echo.New()
	auth := NewAuthMiddleware(NewTokenManager("test-signing-secret", time.Hour))

	handler := auth.RequireOperator()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	t.Run("operator passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(RoleKey, domain.RoleOperator)

		if err := handler(c); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("borrower forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(RoleKey, domain.RoleBorrower)

		err := handler(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("Expected HTTPError, got %T", err)
		}
		if httpErr.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", httpErr.Code)
		}
	})

	t.Run("unauthenticated forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("Expected HTTPError, got %T", err)
		}
		if httpErr.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", httpErr.Code)
		}
	})
}

func TestAccountID_Missing(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if _, ok := AccountID(c); ok {
		t.Error("Expected no account ID on an unauthenticated context")
	}
}
