package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kredia/kredia-backend/internal/middleware"
	"github.com/kredia/kredia-backend/internal/service"
)

// AuthHandler handles registration and login requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents the register request body
type RegisterRequest struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	FullName       string  `json:"fullName"`
	NationalID     *string `json:"nationalId,omitempty"`
	OperatorSecret *string `json:"operatorSecret,omitempty"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register
// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	result, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		NationalID:     req.NationalID,
		OperatorSecret: req.OperatorSecret,
	})
	if err != nil {
		return DomainError(c, err)
	}
	return Created(c, "Account registered", result)
}

// Login handles POST /api/v1/auth/login
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	result, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Logged in", result)
}

// Me handles GET /api/v1/auth/me
// @Summary Get the authenticated account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return Fail(c, http.StatusUnauthorized, "Authentication required")
	}

	account, err := h.authService.GetAccount(c.Request().Context(), accountID)
	if err != nil {
		return DomainError(c, err)
	}
	return OK(c, "Account retrieved", account)
}
