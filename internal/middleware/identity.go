package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/services/identity"
)

// Resolver computes the AuthContext for a request.
type Resolver interface {
	Resolve(ctx context.Context, in identity.RequestInput) (*identity.AuthContext, error)
}

// ExtractOptions names the cookies and headers carrying credentials.
type ExtractOptions struct {
	// SessionNames lists session cookie names in probe priority order.
	// Cookies with other names are ignored.
	SessionNames     []string
	PersistentCookie string
	PersistentHeader string
	BearerHeader     string
}

// ExtractOptionsFromConfig maps configuration onto ExtractOptions.
func ExtractOptionsFromConfig(cfg *config.Config) ExtractOptions {
	return ExtractOptions{
		SessionNames:     cfg.Session.CandidateNames,
		PersistentCookie: cfg.Tokens.PersistentCookie,
		PersistentHeader: cfg.Tokens.PersistentHeader,
		BearerHeader:     cfg.Tokens.BearerHeader,
	}
}

// InputFromRequest collects session candidates and credentials from r.
func InputFromRequest(r *http.Request, opts ExtractOptions) identity.RequestInput {
	in := identity.RequestInput{
		RequestID:  chimiddleware.GetReqID(r.Context()),
		Candidates: make([]identity.SessionCandidate, 0, len(opts.SessionNames)),
	}

	for _, name := range opts.SessionNames {
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value == "" {
			continue
		}
		in.Candidates = append(in.Candidates, identity.SessionCandidate{Name: name, RawValue: cookie.Value})
	}

	if opts.PersistentCookie != "" {
		if cookie, err := r.Cookie(opts.PersistentCookie); err == nil {
			in.Credentials.PersistentToken = cookie.Value
		}
	}
	if in.Credentials.PersistentToken == "" && opts.PersistentHeader != "" {
		in.Credentials.PersistentToken = strings.TrimSpace(r.Header.Get(opts.PersistentHeader))
	}

	in.Credentials.Authorization = r.Header.Get("Authorization")
	if opts.BearerHeader != "" {
		in.Credentials.APIToken = strings.TrimSpace(r.Header.Get(opts.BearerHeader))
	}
	return in
}

// ResolveIdentity resolves every request once and memoizes the AuthContext on
// the request context. Anonymous requests pass through; handlers that need a
// user guard themselves with RequireAuth or identity.RequireAuthContext.
func ResolveIdentity(resolver Resolver, opts ExtractOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := identity.WithResolutionCache(r.Context())
			if _, err := resolver.Resolve(ctx, InputFromRequest(r, opts)); err != nil {
				if errors.Is(err, identity.ErrAccountInactive) {
					writeJSONError(w, http.StatusForbidden, "account_inactive", "account disabled")
					return
				}
				log.Error().Err(err).Str("path", r.URL.Path).Msg("identity resolution failed")
				writeJSONError(w, http.StatusInternalServerError, "resolution_failed", "authentication error")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
