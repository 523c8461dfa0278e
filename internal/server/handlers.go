package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	authmiddleware "github.com/terraconstructs/authresolve/internal/middleware"
	"github.com/terraconstructs/authresolve/internal/services/identity"
)

// HandleWhoAmI returns the caller's resolved AuthContext.
func HandleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ac, err := identity.RequireAuthContext(r.Context())
	if err != nil {
		authmiddleware.Forbidden(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ac.Summary())
}

// canResponse answers a single permission check.
type canResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// HandleCan reports whether the caller holds the permission named in the path.
func HandleCan(w http.ResponseWriter, r *http.Request) {
	ac, err := identity.RequireAuthContext(r.Context())
	if err != nil {
		authmiddleware.Forbidden(w, err)
		return
	}
	perm := chi.URLParam(r, "permission")
	writeJSON(w, http.StatusOK, canResponse{Permission: perm, Allowed: ac.HasPermission(perm)})
}

// HealthHandler reports 503 while check fails.
func HealthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		defaultHealthHandler(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
