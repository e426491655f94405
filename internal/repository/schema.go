package repository

import (
	"context"
	"fmt"
	"time"
)

// Schema definitions for the Mizan database. Every statement must run
// unchanged on SQLite and PostgreSQL.

const schemaAdditives = `
CREATE TABLE IF NOT EXISTS additives (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    status TEXT NOT NULL,
    risk_flags TEXT NOT NULL,
    explanation TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// schemaMadhabRulings holds school-specific rulings keyed by additive code
// (or ingredient pattern). A NULL ruling defers to the default status.
const schemaMadhabRulings = `
CREATE TABLE IF NOT EXISTS madhab_rulings (
    rule_key TEXT NOT NULL,
    madhab TEXT NOT NULL,
    ruling TEXT,
    explanation TEXT NOT NULL,
    reference TEXT NOT NULL,
    PRIMARY KEY (rule_key, madhab)
);

CREATE INDEX IF NOT EXISTS idx_madhab_rulings_madhab ON madhab_rulings(madhab);
`

// schemaIngredientRulings stores pattern rules. position keeps insertion
// order, which breaks priority ties.
const schemaIngredientRulings = `
CREATE TABLE IF NOT EXISTS ingredient_rulings (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    pattern TEXT NOT NULL,
    match_type TEXT NOT NULL,
    priority INTEGER NOT NULL,
    ruling_default TEXT NOT NULL,
    ruling_hanafi TEXT,
    ruling_shafii TEXT,
    ruling_maliki TEXT,
    ruling_hanbali TEXT,
    confidence REAL NOT NULL,
    category TEXT NOT NULL,
    explanation TEXT NOT NULL,
    overrides_keyword TEXT NOT NULL,
    additive_code TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingredient_rulings_active ON ingredient_rulings(active, position);
`

const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    barcode TEXT NOT NULL,
    input_hash TEXT NOT NULL,
    madhab TEXT NOT NULL,
    strictness TEXT NOT NULL,
    status TEXT NOT NULL,
    tier TEXT NOT NULL,
    confidence REAL NOT NULL,
    analysis TEXT NOT NULL,
    alerts TEXT NOT NULL,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    created_unix INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_barcode ON analyses(barcode);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_unix);
`

const schemaAlertRules = `
CREATE TABLE IF NOT EXISTS alert_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
);
`

type migration struct {
	version int
	name    string
	ddl     string
}

// migrations are applied in order, each in its own transaction. Append
// new ones; never edit an applied one. The DDL is idempotent so databases
// created before schema_migrations existed upgrade cleanly.
var migrations = []migration{
	{1, "rule tables", schemaAdditives + schemaMadhabRulings + schemaIngredientRulings},
	{2, "analyses", schemaAnalyses},
	{3, "alert rules", schemaAlertRules},
}

// SchemaVersion is the highest applied migration, 0 for an empty database.
func (r *SQLRepository) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaMigrations); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	current, err := r.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (r *SQLRepository) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		r.rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
		m.version, m.name, time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
