package middleware

import (
	"context"
	"net/http"

	"ledger/internal/apperr"
)

type AdminChecker interface {
	IsAdmin(ctx context.Context, accountID string) (bool, error)
}

func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := AccountIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, apperr.InvalidCredentials, "unauthorized")
				return
			}
			isAdmin, err := checker.IsAdmin(r.Context(), accountID)
			if err != nil {
				writeError(w, apperr.HTTPStatus(apperr.KindOf(err)), apperr.KindOf(err), "unable to verify admin")
				return
			}
			if !isAdmin {
				writeError(w, apperr.HTTPStatus(apperr.Forbidden), apperr.Forbidden, apperr.ErrForbidden.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
