// Package auth guards routes that need a signed-in user.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/platform/httputil"
	"socialid/pkg/requestcontext"
)

// SessionCookie carries the session token between browser and API.
const SessionCookie = "session"

// SessionValidator resolves a session token to the profile it was issued for.
type SessionValidator interface {
	ValidateSession(token string) (uuid.UUID, error)
}

// TokenFromRequest returns the session token from the session cookie, or
// from an Authorization bearer header when no cookie is set.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// RequireAuth rejects requests without a valid session with 401 and stores
// the profile id and token in the request context otherwise.
func RequireAuth(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := TokenFromRequest(r)

			profileID, err := validator.ValidateSession(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access",
					"request_id", requestcontext.RequestID(ctx),
					"has_token", token != "",
					"error", err,
				)
				if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					err = dErrors.Wrap(err, dErrors.CodeUnauthorized, "Token is invalid. Please login again.")
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithUserID(ctx, profileID)
			ctx = requestcontext.WithSessionToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
