package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockledger/pkg/logger"
)

// migrationStep is one versioned schema change for a tenant database.
// Steps are applied in order, each in its own transaction, and recorded
// in schema_migrations so reruns are no-ops.
type migrationStep struct {
	version int
	name    string
	sql     string
}

var tenantMigrations = []migrationStep{
	{
		version: 1,
		name:    "create products",
		sql: `
			CREATE TABLE IF NOT EXISTS products (
				id            UUID PRIMARY KEY,
				name          TEXT NOT NULL,
				category      TEXT NOT NULL DEFAULT '',
				brand         TEXT NOT NULL DEFAULT '',
				description   TEXT NOT NULL DEFAULT '',
				image_ref     TEXT NOT NULL DEFAULT '',
				current_stock BIGINT NOT NULL DEFAULT 0,
				cost_price    NUMERIC(15,2) NOT NULL DEFAULT 0,
				sale_price    NUMERIC(15,2) NOT NULL DEFAULT 0,
				supplier      TEXT NOT NULL DEFAULT '',
				active        BOOLEAN NOT NULL DEFAULT TRUE,
				version       INT NOT NULL DEFAULT 1,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS ux_products_name_ci ON products (LOWER(name));
		`,
	},
	{
		version: 2,
		name:    "create movements",
		sql: `
			CREATE TABLE IF NOT EXISTS movements (
				id               UUID PRIMARY KEY,
				product_name     TEXT NOT NULL,
				product_category TEXT NOT NULL DEFAULT '',
				kind             TEXT NOT NULL,
				quantity         BIGINT NOT NULL,
				price            NUMERIC(15,2),
				party            TEXT NOT NULL DEFAULT '',
				notes            TEXT NOT NULL DEFAULT '',
				movement_date    TEXT NOT NULL,
				created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS ix_movements_product_ci ON movements (LOWER(product_name));
			CREATE INDEX IF NOT EXISTS ix_movements_date ON movements (movement_date);
			CREATE INDEX IF NOT EXISTS ix_movements_kind ON movements (kind);
		`,
	},
	{
		version: 3,
		name:    "create parties",
		sql: `
			CREATE TABLE IF NOT EXISTS parties (
				id         UUID PRIMARY KEY,
				name       TEXT NOT NULL,
				type       TEXT NOT NULL DEFAULT 'Other',
				active     BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS ux_parties_name_ci ON parties (LOWER(name));
		`,
	},
	{
		version: 4,
		name:    "create users",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id            UUID PRIMARY KEY,
				username      TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role          TEXT NOT NULL DEFAULT 'viewer',
				status        TEXT NOT NULL DEFAULT 'pending',
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS ux_users_username_ci ON users (LOWER(username));
		`,
	},
	{
		version: 5,
		name:    "create data versions",
		sql: `
			CREATE TABLE IF NOT EXISTS data_versions (
				family  TEXT PRIMARY KEY,
				version BIGINT NOT NULL DEFAULT 0
			);
			INSERT INTO data_versions (family, version) VALUES
				('products', 0), ('movements', 0), ('parties', 0)
			ON CONFLICT (family) DO NOTHING;
		`,
	},
	{
		version: 6,
		name:    "create audit log",
		sql: `
			CREATE TABLE IF NOT EXISTS sys_audit (
				id                 UUID PRIMARY KEY,
				entity_type        TEXT NOT NULL,
				entity_ref         TEXT NOT NULL,
				action             TEXT NOT NULL,
				user_id            TEXT NOT NULL DEFAULT '',
				changes            JSONB,
				changes_compressed BYTEA,
				compression_algo   TEXT NOT NULL DEFAULT 'none',
				created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS ix_sys_audit_entity ON sys_audit (entity_type, entity_ref);
		`,
	},
}

// columnBackfills are backward-compatible column additions applied after the
// versioned steps on every run. They let older tenant databases pick up late
// columns without version bookkeeping.
var columnBackfills = []string{
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS image_ref TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS supplier TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE movements ADD COLUMN IF NOT EXISTS notes TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE movements ADD COLUMN IF NOT EXISTS product_category TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'pending'`,
}

// MigrateTenant brings a tenant database to the current schema.
// Idempotent: safe to run on every startup and from the tenant CLI.
func MigrateTenant(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	err = pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, step := range tenantMigrations {
		if step.version <= current {
			continue
		}
		if err := applyStep(ctx, pool, step); err != nil {
			return fmt.Errorf("migration %d (%s): %w", step.version, step.name, err)
		}
		logger.Info(ctx, "applied migration", "version", step.version, "name", step.name)
	}

	for _, stmt := range columnBackfills {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("column backfill: %w", err)
		}
	}

	return nil
}

// applyStep runs one migration step and records it, atomically.
func applyStep(ctx context.Context, pool *pgxpool.Pool, step migrationStep) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, step.sql); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			step.version, step.name,
		)
		return err
	})
}

// EnsureMetaSchema creates the tenant registry table in the meta-database.
func EnsureMetaSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			slug         TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			db_name      TEXT NOT NULL,
			db_host      TEXT NOT NULL DEFAULT 'localhost',
			db_port      INT NOT NULL DEFAULT 5432,
			status       TEXT NOT NULL DEFAULT 'active',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create tenants table: %w", err)
	}
	return nil
}
