package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/server/middleware"
	"github.com/faucetdb/packetdesk/internal/service"
	"github.com/faucetdb/packetdesk/internal/session"
)

// AdminHandler exposes admin registration, login and password changes.
type AdminHandler struct {
	authSvc  *service.AuthService
	tokens   *service.TokenIssuer
	validate *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authSvc *service.AuthService, tokens *service.TokenIssuer) *AdminHandler {
	return &AdminHandler{
		authSvc:  authSvc,
		tokens:   tokens,
		validate: newValidator(),
	}
}

// requestService binds the auth service to a throwaway session slot. The
// server never keeps session state between requests; clients hold a JWT.
func (h *AdminHandler) requestService() *service.AuthService {
	return h.authSvc.WithSession(session.New(session.NewMemoryStorage()))
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string             `json:"session_token"`
	TokenType string             `json:"token_type"`
	ExpiresIn int                `json:"expires_in"`
	User      *model.PublicAdmin `json:"user"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Register creates a new admin account.
// POST /api/v1/admin/register
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	res := h.requestService().RegisterAdmin(r.Context(), req.Email, req.Password)
	if !res.Success {
		writeAuthError(w, res.Error)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    res.User,
	})
}

// Login authenticates an admin and returns a signed bearer token.
// POST /api/v1/admin/session
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	res := h.requestService().LoginAdmin(r.Context(), req.Email, req.Password)
	if !res.Success {
		writeAuthError(w, res.Error)
		return
	}

	token, expiresAt, err := h.tokens.Issue(res.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(time.Until(expiresAt).Seconds()),
		User:      res.User,
	})
}

// Logout acknowledges a logout. Tokens are stateless, so the client simply
// discards its copy.
// DELETE /api/v1/admin/session
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.requestService().Logout()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// Me returns the authenticated admin's identity.
// GET /api/v1/admin/me
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    p.AdminID,
		"email": p.Email,
	})
}

// ChangePassword replaces the authenticated admin's password.
// PUT /api/v1/admin/password
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req changePasswordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	res := h.requestService().ChangePassword(r.Context(), p.Email, req.OldPassword, req.NewPassword)
	if !res.Success {
		writeAuthError(w, res.Error)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password changed",
	})
}
