package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authmiddleware "github.com/terraconstructs/authresolve/internal/middleware"
)

// RouterOptions controls the construction of the HTTP router.
// Resolver is required; the other fields have defaults.
type RouterOptions struct {
	Resolver      authmiddleware.Resolver
	Extract       authmiddleware.ExtractOptions
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy. Credentials
// are allowed so browser clients can send their session cookies.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Token"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, the CORS policy,
// identity resolution and the operator endpoints.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(authmiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(authmiddleware.ResolveIdentity(opts.Resolver, opts.Extract))

		r.With(authmiddleware.RequireAuth).Get("/whoami", HandleWhoAmI)
		r.With(authmiddleware.RequireAuth).Get("/whoami/can/{permission}", HandleCan)

		if opts.ExtraRoutes != nil {
			opts.ExtraRoutes(r)
		}
	})

	return r
}
