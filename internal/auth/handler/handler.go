package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"socialid/internal/auth/models"
	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/platform/httputil"
	authmw "socialid/pkg/platform/middleware/auth"
	"socialid/pkg/requestcontext"
)

// Service is the credential pipeline behind the auth routes.
type Service interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResult, error)
	Signin(ctx context.Context, req *models.SigninRequest) (*models.AuthResult, error)
	RequestPasswordReset(ctx context.Context, req *models.ForgotPasswordRequest) (*models.MessageResult, error)
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) (*models.MessageResult, error)
	CurrentUser(ctx context.Context, profileID uuid.UUID, token string) (*models.CurrentUserResult, error)
}

// Handler serves the signup, signin, signout, password reset and
// current-user endpoints.
type Handler struct {
	auth         Service
	sessions     authmw.SessionValidator
	logger       *slog.Logger
	secureCookie bool
	cookieMaxAge time.Duration
}

type Option func(*Handler)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// WithCookieMaxAge bounds the session cookie lifetime; zero leaves it a
// browser-session cookie.
func WithCookieMaxAge(d time.Duration) Option {
	return func(h *Handler) {
		h.cookieMaxAge = d
	}
}

func New(auth Service, sessions authmw.SessionValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		auth:     auth,
		sessions: sessions,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/signin", h.handleSignin)
	r.Get("/signout", h.handleSignout)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password/{token}", h.handleResetPassword)
	r.With(authmw.RequireAuth(h.sessions, h.logger)).Get("/currentuser", h.handleCurrentUser)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.SignupRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.auth.Signup(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "signup failed", err)
		return
	}
	h.setSessionCookie(w, result.Token)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.SigninRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.auth.Signin(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "signin failed", err)
		return
	}
	h.setSessionCookie(w, result.Token)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleSignout only clears the cookie; session tokens are stateless.
func (h *Handler) handleSignout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, signoutResponse{
		Message: models.MessageSignoutSuccess,
		User:    struct{}{},
	})
}

type signoutResponse struct {
	Message string   `json:"message"`
	User    struct{} `json:"user"`
	Token   string   `json:"token"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.ForgotPasswordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.auth.RequestPasswordReset(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "password reset request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.ResetPasswordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	req.Token = chi.URLParam(r, "token")
	result, err := h.auth.ResetPassword(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "password reset failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.auth.CurrentUser(ctx, requestcontext.UserID(ctx), requestcontext.SessionToken(ctx))
	if err != nil {
		h.writeError(ctx, w, "current user lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     authmw.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cookieMaxAge > 0 {
		cookie.MaxAge = int(h.cookieMaxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
