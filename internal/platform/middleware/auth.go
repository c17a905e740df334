package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "othello/pkg/domain"
)

// Identification only: the gateway assumes callers are authenticated upstream
// and carries a signed subject claim so handlers know whose consent boundary
// applies. There is no session or credential handling here.

type contextKeyUserID struct{}

// ContextKeyUserID is exported for use in tests that pre-populate context.
var ContextKeyUserID = contextKeyUserID{}

// GetUserID retrieves the identified user ID from the context.
func GetUserID(ctx context.Context) id.UserID {
	userID, ok := ctx.Value(ContextKeyUserID).(id.UserID)
	if !ok {
		return id.UserID{}
	}
	return userID
}

// WithUserID returns a context carrying the given user ID. Test helper.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// Identify validates the bearer token and stores its subject claim in the
// request context. Requests without a valid subject are rejected.
func Identify(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			subject, err := subjectFromToken(token, signingKey)
			if err != nil {
				logger.WarnContext(ctx, "rejected request with invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(subject)
			if err != nil || userID.IsNil() {
				logger.WarnContext(ctx, "rejected token with malformed subject",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "invalid subject claim")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
		})
	}
}

func subjectFromToken(tokenString string, signingKey []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token missing subject claim")
	}
	return subject, nil
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
