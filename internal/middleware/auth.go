package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/kredia/kredia-backend/internal/domain"
)

// Context keys set by the auth middleware
const (
	// AccountIDKey is the echo context key for the authenticated account ID
	AccountIDKey = "account_id"
	// RoleKey is the echo context key for the authenticated account role
	RoleKey = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims issued by the engine.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 bearer tokens signed with the
// local signing secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a TokenManager from the signing secret and token lifetime.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the account.
func (m *TokenManager) Issue(account *domain.Account) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  string(account.Role),
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate parses a token and returns the account ID and role.
func (m *TokenManager) Validate(token string) (uuid.UUID, domain.Role, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return uuid.Nil, "", ErrInvalidToken
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return accountID, domain.Role(claims.Role), nil
}

// AuthMiddleware validates bearer tokens on protected routes.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware creates an AuthMiddleware around a TokenManager.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate returns an Echo middleware that validates bearer tokens and
// stores the account ID and role on the request context.
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			accountID, role, err := m.tokens.Validate(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(AccountIDKey, accountID)
			c.Set(RoleKey, role)
			return next(c)
		}
	}
}

// RequireOperator returns a middleware that rejects non-operator accounts.
// It must run after Authenticate.
func (m *AuthMiddleware) RequireOperator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(RoleKey).(domain.Role)
			if !ok || role != domain.RoleOperator {
				return echo.NewHTTPError(http.StatusForbidden, "operator role required")
			}
			return next(c)
		}
	}
}

// AccountID extracts the authenticated account ID from the context.
func AccountID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(AccountIDKey).(uuid.UUID)
	return id, ok
}
