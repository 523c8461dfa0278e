package sessionstore

import (
	"context"
	"fmt"

	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/uptrace/bun"
)

// New builds the backend selected by cfg.Backend. db is only used by the
// sql backend.
func New(ctx context.Context, cfg config.SessionConfig, db *bun.DB) (Store, error) {
	switch cfg.Backend {
	case config.SessionBackendSQL:
		if db == nil {
			return nil, fmt.Errorf("sql session backend requires a database")
		}
		return NewSQLStore(db, cfg.TTL), nil
	case config.SessionBackendRedis:
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix, cfg.TTL)
	case config.SessionBackendBolt:
		return OpenBoltStore(cfg.BoltPath, cfg.TTL)
	case config.SessionBackendMemory:
		return NewMemoryStore(cfg.MemoryCapacity, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
