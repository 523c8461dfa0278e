package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "AUTHRESOLVE"

// Session backends understood by the session store factory.
const (
	SessionBackendSQL    = "sql"
	SessionBackendRedis  = "redis"
	SessionBackendBolt   = "bolt"
	SessionBackendMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	Session       SessionConfig
	Tokens        TokenConfig
	Permissions   PermissionConfig
	Observability ObservabilityConfig
}

// SessionConfig controls which session stores are probed and where they live.
type SessionConfig struct {
	// Backend selects the store holding session attribute maps.
	Backend string

	// CandidateNames is the probe priority order of session cookie names.
	CandidateNames []string

	// DefaultName is opened (or created) when no candidate carries an identity.
	DefaultName string

	// CreateDefault controls whether an empty default session is created
	// when the request carries none.
	CreateDefault bool

	RedisAddr      string
	RedisPrefix    string
	BoltPath       string
	MemoryCapacity int
	TTL            time.Duration
}

// TokenConfig describes where long-lived and bearer credentials are found.
type TokenConfig struct {
	// PersistentCookie names the "remember me" cookie.
	PersistentCookie string

	// PersistentHeader is an optional header carrying the same token.
	PersistentHeader string

	// Locations is the ordered list of tables that may hold persistent tokens.
	Locations []TokenLocation

	// BearerHeader is an alternate header carrying a bare API token.
	BearerHeader string
}

// TokenLocation is one (table, column) pair that may hold a persistent token.
// The companion column names default to user_id, expires_at and revoked;
// an empty ExpiresColumn or RevokedColumn disables that filter.
type TokenLocation struct {
	Table         string
	Column        string
	UserIDColumn  string
	ExpiresColumn string
	RevokedColumn string
}

// String renders the location in its configuration form.
func (l TokenLocation) String() string {
	return l.Table + "." + l.Column
}

// PermissionConfig tunes grant aggregation.
type PermissionConfig struct {
	BootstrapRoleID int64
	SafetyNet       SafetyNetConfig
	CasbinEnabled   bool
}

// SafetyNetConfig controls the bootstrap-role fallback grant.
type SafetyNetConfig struct {
	Enabled bool
	Keys    []string
}

// ObservabilityConfig holds OpenTelemetry exporter settings.
type ObservabilityConfig struct {
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string
}

// DefaultSafetyNetKeys is the minimal administrative set granted to a
// bootstrap-role user whose role carries no explicit permissions.
var DefaultSafetyNetKeys = []string{
	"manage_vendors",
	"manage_products",
	"manage_orders",
	"manage_users",
	"manage_roles",
	"manage_settings",
}

// DefaultTokenLocations lists the persistent token tables of the current
// schema followed by the legacy one.
var DefaultTokenLocations = []string{
	"user_remember_tokens.token",
	"persistent_sessions.session_token",
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SetDefaults registers every default on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "file:authresolve.db?cache=shared")
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)

	v.SetDefault("session.backend", SessionBackendSQL)
	v.SetDefault("session.candidate_names", []string{"legacy_sid", "sid"})
	v.SetDefault("session.default_name", "sid")
	v.SetDefault("session.create_default", true)
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_prefix", "sess")
	v.SetDefault("session.bolt_path", "sessions.db")
	v.SetDefault("session.memory_capacity", 10000)
	v.SetDefault("session.ttl", 24*time.Hour)

	v.SetDefault("tokens.persistent_cookie", "remember_token")
	v.SetDefault("tokens.persistent_header", "")
	v.SetDefault("tokens.locations", DefaultTokenLocations)
	v.SetDefault("tokens.bearer_header", "X-API-Token")

	v.SetDefault("permissions.bootstrap_role_id", 1)
	v.SetDefault("permissions.safety_net.enabled", true)
	v.SetDefault("permissions.safety_net.keys", DefaultSafetyNetKeys)
	v.SetDefault("permissions.casbin.enabled", false)

	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.service_name", "authresolve")
}

// Load reads configuration from the global viper instance: defaults, then an
// optional config file already registered by the caller, then AUTHRESOLVE_*
// environment variables.
func Load() (*Config, error) {
	v := viper.GetViper()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	locations, err := ParseTokenLocations(splitList(v.GetStringSlice("tokens.locations")))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:      v.GetString("database_url"),
		ServerAddr:       v.GetString("server_addr"),
		MaxDBConnections: v.GetInt("max_db_connections"),
		Debug:            v.GetBool("debug"),
		Session: SessionConfig{
			Backend:        strings.ToLower(v.GetString("session.backend")),
			CandidateNames: splitList(v.GetStringSlice("session.candidate_names")),
			DefaultName:    v.GetString("session.default_name"),
			CreateDefault:  v.GetBool("session.create_default"),
			RedisAddr:      v.GetString("session.redis_addr"),
			RedisPrefix:    v.GetString("session.redis_prefix"),
			BoltPath:       v.GetString("session.bolt_path"),
			MemoryCapacity: v.GetInt("session.memory_capacity"),
			TTL:            v.GetDuration("session.ttl"),
		},
		Tokens: TokenConfig{
			PersistentCookie: v.GetString("tokens.persistent_cookie"),
			PersistentHeader: v.GetString("tokens.persistent_header"),
			Locations:        locations,
			BearerHeader:     v.GetString("tokens.bearer_header"),
		},
		Permissions: PermissionConfig{
			BootstrapRoleID: v.GetInt64("permissions.bootstrap_role_id"),
			SafetyNet: SafetyNetConfig{
				Enabled: v.GetBool("permissions.safety_net.enabled"),
				Keys:    splitList(v.GetStringSlice("permissions.safety_net.keys")),
			},
			CasbinEnabled: v.GetBool("permissions.casbin.enabled"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: v.GetString("observability.otlp_endpoint"),
			OTLPInsecure: v.GetBool("observability.otlp_insecure"),
			ServiceName:  v.GetString("observability.service_name"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Session.CandidateNames) == 0 {
		return fmt.Errorf("session.candidate_names must list at least one session name")
	}
	if c.Session.DefaultName == "" {
		return fmt.Errorf("session.default_name is required")
	}
	switch c.Session.Backend {
	case SessionBackendSQL, SessionBackendRedis, SessionBackendBolt, SessionBackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.Backend == SessionBackendMemory && c.Session.MemoryCapacity <= 0 {
		return fmt.Errorf("session.memory_capacity must be positive")
	}
	if c.Permissions.SafetyNet.Enabled && c.Permissions.BootstrapRoleID <= 0 {
		return fmt.Errorf("permissions.bootstrap_role_id must be positive when the safety net is enabled")
	}
	return nil
}

// ParseTokenLocations parses "table.column" entries. An optional
// "table.column:user_column" suffix overrides the user id column.
func ParseTokenLocations(entries []string) ([]TokenLocation, error) {
	locations := make([]TokenLocation, 0, len(entries))
	for _, entry := range entries {
		spec, userCol, hasUserCol := strings.Cut(entry, ":")
		table, column, ok := strings.Cut(spec, ".")
		if !ok || !identPattern.MatchString(table) || !identPattern.MatchString(column) {
			return nil, fmt.Errorf("malformed token location %q: want table.column", entry)
		}
		loc := TokenLocation{
			Table:         table,
			Column:        column,
			UserIDColumn:  "user_id",
			ExpiresColumn: "expires_at",
			RevokedColumn: "revoked",
		}
		if hasUserCol {
			if !identPattern.MatchString(userCol) {
				return nil, fmt.Errorf("malformed token location %q: bad user column", entry)
			}
			loc.UserIDColumn = userCol
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// splitList flattens comma separated entries so env vars like
// AUTHRESOLVE_SESSION_CANDIDATE_NAMES=legacy_sid,sid work.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
