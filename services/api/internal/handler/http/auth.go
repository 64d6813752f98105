package http

import (
	"log/slog"
	"net/http"

	"github.com/bookineo/bookineo/pkg/httputil"
	"github.com/bookineo/bookineo/pkg/middleware"
	"github.com/bookineo/bookineo/services/api/internal/domain"
	"github.com/bookineo/bookineo/services/api/internal/service"
)

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Username  string `json:"username" validate:"required,min=3,max=30"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /auth/refresh and, optionally, of
// POST /auth/signout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse pairs a session with the signed-in user.
type SessionResponse struct {
	Session *domain.Session `json:"session"`
	User    *domain.User    `json:"user"`
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.SignUp(r.Context(), service.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, user)
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, SessionResponse{Session: session, User: user})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, SessionResponse{Session: session})
}

// SignOut handles POST /api/v1/auth/signout. Without a body every refresh
// token of the caller is revoked.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength > 0 && !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SignOut(r.Context(), middleware.UserIDFromContext(r.Context()), req.RefreshToken); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session and returns the principal of the
// bearer token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.WriteData(w, http.StatusOK, map[string]string{
		"user_id": middleware.UserIDFromContext(ctx),
		"tier":    middleware.TierFromContext(ctx),
	})
}
