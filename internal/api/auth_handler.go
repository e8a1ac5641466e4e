package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/api/middleware"
	"gestionlearn.com/internal/domain"
)

type AuthHandler struct {
	authSvc      domain.AuthService
	cookieSecure bool
}

func NewAuthHandler(authSvc domain.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cookieSecure: cookieSecure}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	h.setCookie(c, name, "", time.Unix(0, 0))
}

// refreshToken reads the refresh cookie, falling back to the JSON body.
func refreshToken(c *fiber.Ctx) string {
	if token := c.Cookies(middleware.RefreshCookie); token != "" {
		return token
	}
	var req TokenRequest
	if len(c.Body()) > 0 && c.BodyParser(&req) == nil {
		return req.RefreshToken
	}
	return ""
}

// Login authenticates the user and sets the token cookies
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	session, err := h.authSvc.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return handleError(c, err)
	}

	h.setCookie(c, middleware.AccessCookie, session.AccessToken, session.AccessExpiresAt)
	h.setCookie(c, middleware.RefreshCookie, session.RefreshToken, session.RefreshExpiresAt)
	return sendData(c, fiber.StatusOK, "Logged in", fiber.Map{
		"user":         session.User,
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
	})
}

// Refresh issues a new access token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token, expires, err := h.authSvc.Refresh(c.UserContext(), refreshToken(c))
	if err != nil {
		return handleError(c, err)
	}

	h.setCookie(c, middleware.AccessCookie, token, expires)
	return sendData(c, fiber.StatusOK, "Access token renewed", fiber.Map{"accessToken": token})
}

// Logout revokes the refresh session and clears both cookies
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authSvc.Logout(c.UserContext(), refreshToken(c)); err != nil {
		return handleError(c, err)
	}

	h.clearCookie(c, middleware.AccessCookie)
	h.clearCookie(c, middleware.RefreshCookie)
	return sendData(c, fiber.StatusOK, "Logged out successfully", nil)
}

// GetMe returns the current user's profile
// GET /api/auth/me
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.authSvc.Me(c.UserContext(), principal(c).ID)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", user)
}

// RequestPasswordReset emails a reset code. The answer is the same whether or
// not the account exists.
// POST /api/auth/request-password-reset
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	if err := h.authSvc.IssueResetCode(c.UserContext(), req.Email); err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "If an account exists for this email, a reset code has been sent", nil)
}

// ResetPassword sets a new password using a reset code
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	if err := h.authSvc.ConsumeResetCode(c.UserContext(), req.Email, req.Code, req.Password); err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Password has been reset", nil)
}
