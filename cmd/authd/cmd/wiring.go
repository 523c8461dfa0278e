package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/authresolve/internal/auth"
	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/db/bunx"
	"github.com/terraconstructs/authresolve/internal/repository"
	"github.com/terraconstructs/authresolve/internal/services/identity"
	"github.com/terraconstructs/authresolve/internal/sessionstore"
	"github.com/terraconstructs/authresolve/internal/telemetry"
)

// runtime holds the long-lived resources behind an engine.
type runtime struct {
	db       *bun.DB
	sessions sessionstore.Store
	engine   *identity.Engine
}

// buildRuntime opens the database and session store and wires the engine.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Str("database", string(bunx.DetectDatabaseType(cfg.DatabaseURL))).Msg("connected to database")

	sessions, err := sessionstore.New(ctx, cfg.Session, db)
	if err != nil {
		_ = bunx.Close(db)
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	log.Info().
		Str("backend", cfg.Session.Backend).
		Strs("candidates", cfg.Session.CandidateNames).
		Msg("session store ready")

	var extra []identity.GrantSource
	if cfg.Permissions.CasbinEnabled {
		if _, err := auth.InitEnforcer(db); err != nil {
			_ = sessions.Close()
			_ = bunx.Close(db)
			return nil, fmt.Errorf("configure casbin enforcer: %w", err)
		}
		extra = append(extra, identity.NewCasbinGrantSource(db))
		log.Info().Msg("casbin grant source enabled")
	}

	metrics, err := telemetry.NewResolutionMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("resolution metrics disabled")
	}

	engine, err := identity.NewEngine(identity.EngineDependencies{
		Sessions:          sessions,
		Users:             repository.NewBunUserRepository(db),
		Tokens:            repository.NewBunTokenRepository(db),
		Grants:            repository.NewBunGrantRepository(db),
		ExtraGrantSources: extra,
		Metrics:           metrics,
	}, identity.EngineConfigFromConfig(cfg))
	if err != nil {
		_ = sessions.Close()
		_ = bunx.Close(db)
		return nil, fmt.Errorf("create identity engine: %w", err)
	}

	return &runtime{db: db, sessions: sessions, engine: engine}, nil
}

func (r *runtime) Close() {
	if err := r.sessions.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close session store")
	}
	if err := bunx.Close(r.db); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
