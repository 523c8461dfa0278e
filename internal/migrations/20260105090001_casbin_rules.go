package migrations

import (
	"context"
	"fmt"

	casbinbunadapter "github.com/terraconstructs/authresolve/internal/auth/bunadapter"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260105090001, down_20260105090001)
}

// up_20260105090001 creates the legacy policy-engine grant table
func up_20260105090001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating casbin_rules table...")
	_, err := db.NewCreateTable().
		Model((*casbinbunadapter.CasbinRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create casbin_rules table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_casbin_rules_ptype_v0 ON casbin_rules(ptype, v0)`)
	if err != nil {
		return fmt.Errorf("failed to create casbin_rules index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20260105090001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping casbin_rules table...")
	_, err := db.NewDropTable().
		Model((*casbinbunadapter.CasbinRule)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop casbin_rules table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
