package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	authmiddleware "github.com/terraconstructs/authresolve/internal/middleware"
	"github.com/terraconstructs/authresolve/internal/services/identity"
)

var (
	resolveCookies         []string
	resolveBearer          string
	resolveAPIToken        string
	resolvePersistentToken string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a request's identity and permissions",
	Long: `Builds a request from the given cookies and credentials, runs it through the
configured session stores and grant sources, and prints the resulting
AuthContext as JSON. Credential values are never logged.`,
	Example: `  authd resolve --cookie legacy_sid=abc --cookie sid=def
  authd resolve --bearer 3f9c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := buildResolveRequest(resolveCookies, resolveBearer, resolveAPIToken, resolvePersistentToken, cfg.Tokens.BearerHeader, cfg.Tokens.PersistentCookie)
		if err != nil {
			return err
		}

		rt, err := buildRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		in := authmiddleware.InputFromRequest(req, authmiddleware.ExtractOptionsFromConfig(cfg))
		in.RequestID = uuid.NewString()

		ac, err := rt.engine.Resolve(identity.WithResolutionCache(ctx), in)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ac.Summary())
	},
}

// buildResolveRequest turns command line credentials into the request the
// HTTP middleware would see.
func buildResolveRequest(cookies []string, bearer, apiToken, persistent, bearerHeader, persistentCookie string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --cookie %q: want name=value", c)
		}
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if apiToken != "" && bearerHeader != "" {
		req.Header.Set(bearerHeader, apiToken)
	}
	if persistent != "" && persistentCookie != "" {
		req.AddCookie(&http.Cookie{Name: persistentCookie, Value: persistent})
	}
	return req, nil
}

func init() {
	resolveCmd.Flags().StringArrayVar(&resolveCookies, "cookie", nil, "Session cookie as name=value (repeatable, order does not matter)")
	resolveCmd.Flags().StringVar(&resolveBearer, "bearer", "", "API token sent as Authorization: Bearer")
	resolveCmd.Flags().StringVar(&resolveAPIToken, "api-token", "", "API token sent in the alternate API token header")
	resolveCmd.Flags().StringVar(&resolvePersistentToken, "persistent-token", "", "Persistent login token sent as the remember-me cookie")
	rootCmd.AddCommand(resolveCmd)
}
