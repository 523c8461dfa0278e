package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

func init() {
	Migrations.MustRegister(up_20260105090002, down_20260105090002)
}

// BootstrapRoleKey names the seeded administrator role (id 1).
const BootstrapRoleKey = "super_admin"

// up_20260105090002 seeds the bootstrap administrator role with no
// role_permissions rows. The safety net covers it until an operator grants
// explicit keys.
func up_20260105090002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding bootstrap role...")

	role := &models.Role{
		ID:          1,
		Key:         BootstrapRoleKey,
		Description: "Bootstrap administrator",
	}
	_, err := db.NewInsert().
		Model(role).
		On("CONFLICT (id) DO NOTHING"). // Idempotent
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed role %s: %w", role.Key, err)
	}

	if err := advanceSequence(ctx, db, "roles"); err != nil {
		return fmt.Errorf("failed to advance roles sequence: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20260105090002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing bootstrap role...")
	_, err := db.NewDelete().
		Model((*models.Role)(nil)).
		Where("id = ?", 1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove bootstrap role: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

// advanceSequence moves a PostgreSQL serial past explicitly inserted ids.
// SQLite autoincrement needs nothing.
func advanceSequence(ctx context.Context, db *bun.DB, table string) error {
	if db.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence(?, 'id'), GREATEST((SELECT MAX(id) FROM ?), 1))`,
		table, bun.Ident(table))
	return err
}
