package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/auth"
)

type contextKey string

const accountIDKey contextKey = "account_id"

func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountIDKey).(string)
	return accountID, ok && accountID != ""
}

func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// Auth resolves the bearer token to an account id. The ledger trusts this
// identity as the source account of every operation.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, apperr.InvalidCredentials, "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, apperr.InvalidCredentials, "invalid authorization header")
				return
			}
			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, apperr.InvalidCredentials, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), claims.AccountID)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(kind), "detail": detail})
}
