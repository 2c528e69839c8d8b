package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/placereviews/internal/auth"
)

// SessionHeader carries the client's search session id.
const SessionHeader = "X-Session-ID"

// AnonymousSession is the session key used when the caller sends neither a
// session id nor a token.
const AnonymousSession = "anonymous"

type userIDKey struct{}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// SetUserID stores the acting user id in the context.
func SetUserID(ctx context.Context, userID string) context.Context {
	if info := infoFrom(ctx); info != nil {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the acting user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SessionID returns the search session key for r: the X-Session-ID header,
// then the acting user, then AnonymousSession.
func SessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if uid := GetUserID(r.Context()); uid != "" {
		return "user:" + uid
	}
	return AnonymousSession
}

// Authenticate resolves the acting user from an "Authorization: Bearer"
// header. Requests without a token continue anonymously; a malformed, expired
// or otherwise invalid token is rejected with 401.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				rejectToken(w, r, "malformed authorization header")
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", slog.String("error", err.Error()))
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "token has expired"
				}
				rejectToken(w, r, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), claims.UserID())))
		})
	}
}

func rejectToken(w http.ResponseWriter, r *http.Request, msg string) {
	SetErrorCode(r.Context(), "invalid_token")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": "invalid_token", "message": msg},
	})
}
