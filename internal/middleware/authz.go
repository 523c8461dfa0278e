package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/terraconstructs/authresolve/internal/services/identity"
)

// RequireAuth rejects requests without a resolved identity with 403.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := identity.RequireAuthContext(r.Context()); err != nil {
			Forbidden(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects requests whose caller lacks key with 403.
func RequirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := identity.RequireAuthContext(r.Context())
			if err != nil {
				Forbidden(w, err)
				return
			}
			if !ac.HasPermission(key) {
				log.Debug().
					Int64("user_id", ac.Identity.UserID).
					Str("permission", key).
					Msg("permission denied")
				writeJSONError(w, http.StatusForbidden, "permission_denied", "missing permission "+key)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Forbidden writes the 403 JSON body for a failed RequireAuthContext.
func Forbidden(w http.ResponseWriter, err error) {
	if errors.Is(err, identity.ErrAccountInactive) {
		writeJSONError(w, http.StatusForbidden, "account_inactive", "account disabled")
		return
	}
	writeJSONError(w, http.StatusForbidden, "unauthorized", "authentication required")
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
