// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-food/mizan/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db      *sql.DB
	dialect *dialect
}

// dialect captures what differs between the supported databases.
type dialect struct {
	name     string // database/sql driver name
	numbered bool   // $1, $2 placeholders instead of ?
	dsn      func(domain.RepositoryConfig) (string, error)
	tune     func(*sql.DB, domain.RepositoryConfig)
}

var dialects = map[string]*dialect{
	"sqlite":   sqliteDialect,
	"postgres": postgresDialect,
}

// openTimeout bounds the initial ping and the migrations run by New.
const openTimeout = 30 * time.Second

// New opens the configured database, applies the pool settings and brings
// the schema up to date.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	dsn, err := d.dsn(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure %s: %w", d.name, err)
	}
	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	d.tune(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.name, err)
	}

	repo := &SQLRepository{db: db, dialect: d}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

// FetchAdditivesByCodes returns the additive records for the given canonical
// codes in one query. Unknown codes are absent from the result.
func (r *SQLRepository) FetchAdditivesByCodes(ctx context.Context, codes []string) ([]domain.AdditiveRecord, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	query := `
		SELECT code, name, category, status, risk_flags, explanation
		FROM additives
		WHERE code IN (` + placeholders(len(codes)) + `)
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), stringArgs(codes)...)
	if err != nil {
		return nil, fmt.Errorf("fetch additives: %w", err)
	}
	defer rows.Close()

	var out []domain.AdditiveRecord
	for rows.Next() {
		rec, err := scanAdditive(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch additives: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// FetchMadhabRulings returns the rulings of one school for the given codes in one query.
// The general madhab has no rulings of its own.
func (r *SQLRepository) FetchMadhabRulings(ctx context.Context, codes []string, madhab domain.Madhab) ([]domain.MadhabRuling, error) {
	if len(codes) == 0 || !madhab.IsSchool() {
		return nil, nil
	}

	query := `
		SELECT rule_key, madhab, ruling, explanation, reference
		FROM madhab_rulings
		WHERE madhab = ? AND rule_key IN (` + placeholders(len(codes)) + `)
		ORDER BY rule_key
	`

	args := append([]any{string(madhab)}, stringArgs(codes)...)
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("fetch madhab rulings: %w", err)
	}
	defer rows.Close()

	var out []domain.MadhabRuling
	for rows.Next() {
		var mr domain.MadhabRuling
		var madhabCol string
		var ruling sql.NullString
		if err := rows.Scan(&mr.Key, &madhabCol, &ruling, &mr.Explanation, &mr.Reference); err != nil {
			return nil, fmt.Errorf("fetch madhab rulings: %w", err)
		}
		mr.Madhab = domain.Madhab(madhabCol)
		mr.Ruling = nullStatus(ruling)
		out = append(out, mr)
	}
	return out, rows.Err()
}

// FetchActiveIngredientRulings returns every active rule in insertion order.
func (r *SQLRepository) FetchActiveIngredientRulings(ctx context.Context) ([]domain.IngredientRuling, error) {
	query := ingredientSelect + ` WHERE active = 1 ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch ingredient rulings: %w", err)
	}
	defer rows.Close()

	var out []domain.IngredientRuling
	for rows.Next() {
		rule, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch ingredient rulings: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// SaveAdditive inserts or replaces an additive record.
func (r *SQLRepository) SaveAdditive(ctx context.Context, rec *domain.AdditiveRecord) error {
	if rec == nil || rec.Code == "" {
		return fmt.Errorf("%w: additive code is required", ErrInvalidInput)
	}
	if rec.Code != domain.CanonicalAdditiveCode(rec.Code) {
		return fmt.Errorf("%w: additive code %q is not canonical", ErrInvalidInput, rec.Code)
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidInput, rec.Status)
	}

	flags, _ := json.Marshal(rec.RiskFlags)

	query := `
		INSERT INTO additives (code, name, category, status, risk_flags, explanation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			status = excluded.status,
			risk_flags = excluded.risk_flags,
			explanation = excluded.explanation,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.Code, rec.Name, rec.Category, string(rec.Status), string(flags), rec.Explanation,
		time.Now().UTC(),
	)
	return err
}

// GetAdditive retrieves one additive record by canonical code.
func (r *SQLRepository) GetAdditive(ctx context.Context, code string) (*domain.AdditiveRecord, error) {
	query := `
		SELECT code, name, category, status, risk_flags, explanation
		FROM additives
		WHERE code = ?
	`

	rec, err := scanAdditive(r.db.QueryRowContext(ctx, r.rebind(query), code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveMadhabRuling inserts or replaces a school ruling.
func (r *SQLRepository) SaveMadhabRuling(ctx context.Context, mr *domain.MadhabRuling) error {
	if mr == nil || mr.Key == "" {
		return fmt.Errorf("%w: ruling key is required", ErrInvalidInput)
	}
	if !mr.Madhab.IsSchool() {
		return fmt.Errorf("%w: %q is not a school", ErrInvalidInput, mr.Madhab)
	}

	query := `
		INSERT INTO madhab_rulings (rule_key, madhab, ruling, explanation, reference)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(rule_key, madhab) DO UPDATE SET
			ruling = excluded.ruling,
			explanation = excluded.explanation,
			reference = excluded.reference
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		mr.Key, string(mr.Madhab), statusArg(mr.Ruling), mr.Explanation, mr.Reference,
	)
	return err
}

// SaveIngredientRuling inserts or updates an ingredient rule.
// A new rule is appended after existing ones; an update keeps its position.
func (r *SQLRepository) SaveIngredientRuling(ctx context.Context, rule *domain.IngredientRuling) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w: rule pattern is required", ErrInvalidInput)
	}
	if !rule.MatchType.Valid() {
		return fmt.Errorf("%w: invalid match type %q", ErrInvalidInput, rule.MatchType)
	}
	if !rule.RulingDefault.Valid() {
		return fmt.Errorf("%w: invalid default ruling %q", ErrInvalidInput, rule.RulingDefault)
	}

	active := 0
	if rule.Active {
		active = 1
	}

	query := `
		INSERT INTO ingredient_rulings (
			id, position, pattern, match_type, priority, ruling_default,
			ruling_hanafi, ruling_shafii, ruling_maliki, ruling_hanbali,
			confidence, category, explanation, overrides_keyword, additive_code,
			active, updated_at
		) VALUES (
			?, (SELECT COALESCE(MAX(position), 0) + 1 FROM ingredient_rulings), ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		ON CONFLICT(id) DO UPDATE SET
			pattern = excluded.pattern,
			match_type = excluded.match_type,
			priority = excluded.priority,
			ruling_default = excluded.ruling_default,
			ruling_hanafi = excluded.ruling_hanafi,
			ruling_shafii = excluded.ruling_shafii,
			ruling_maliki = excluded.ruling_maliki,
			ruling_hanbali = excluded.ruling_hanbali,
			confidence = excluded.confidence,
			category = excluded.category,
			explanation = excluded.explanation,
			overrides_keyword = excluded.overrides_keyword,
			additive_code = excluded.additive_code,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Pattern, string(rule.MatchType), rule.Priority, string(rule.RulingDefault),
		statusArg(rule.Hanafi), statusArg(rule.Shafii), statusArg(rule.Maliki), statusArg(rule.Hanbali),
		rule.Confidence, rule.Category, rule.Explanation, rule.OverridesKeyword, rule.AdditiveCode,
		active, time.Now().UTC(),
	)
	return err
}

// GetIngredientRuling retrieves an ingredient rule by ID, active or not.
func (r *SQLRepository) GetIngredientRuling(ctx context.Context, id string) (*domain.IngredientRuling, error) {
	query := ingredientSelect + ` WHERE id = ?`

	rule, err := scanIngredient(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// SaveAnalysis stores a finished analysis.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, rec *domain.AnalysisRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}

	analysis, _ := json.Marshal(rec.Analysis)
	alerts, _ := json.Marshal(rec.Alerts)
	metadata, _ := json.Marshal(rec.Metadata)

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := `
		INSERT INTO analyses (
			id, barcode, input_hash, madhab, strictness, status, tier, confidence,
			analysis, alerts, metadata, created_at, created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.Barcode, rec.InputHash,
		string(rec.Options.Madhab), string(rec.Options.Strictness),
		string(rec.Analysis.Status), string(rec.Analysis.Tier), rec.Analysis.Confidence,
		string(analysis), string(alerts), string(metadata),
		created, created.Unix(),
	)
	return err
}

// GetAnalysis retrieves a stored analysis by ID.
func (r *SQLRepository) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	query := `
		SELECT id, barcode, input_hash, madhab, strictness, analysis, alerts, metadata, created_at
		FROM analyses
		WHERE id = ?
	`

	var rec domain.AnalysisRecord
	var madhab, strictness, analysis, alerts, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&rec.ID, &rec.Barcode, &rec.InputHash,
		&madhab, &strictness,
		&analysis, &alerts, &metadata,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Options = domain.Options{Madhab: domain.Madhab(madhab), Strictness: domain.Strictness(strictness)}
	if err := json.Unmarshal([]byte(analysis), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	json.Unmarshal([]byte(alerts), &rec.Alerts)
	json.Unmarshal([]byte(metadata), &rec.Metadata)

	return &rec, nil
}

// DeleteAnalysesBefore removes analyses created before the cutoff and
// returns how many were deleted.
func (r *SQLRepository) DeleteAnalysesBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM analyses WHERE created_unix < ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), before.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete analyses: %w", err)
	}
	return result.RowsAffected()
}

// SaveAlertRule inserts or updates an alert rule.
func (r *SQLRepository) SaveAlertRule(ctx context.Context, rule *domain.AlertRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: alert rule id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(rule.Expression) == "" {
		return fmt.Errorf("%w: alert rule expression is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO alert_rules (id, name, description, expression, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression, enabled, now, now,
	)
	return err
}

// ListAlertRules returns every alert rule, enabled or not.
func (r *SQLRepository) ListAlertRules(ctx context.Context) ([]*domain.AlertRule, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM alert_rules
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.AlertRule
	for rows.Next() {
		var rule domain.AlertRule
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&enabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	return r.dialect.rebind(query)
}

func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

const ingredientSelect = `
	SELECT id, pattern, match_type, priority, ruling_default,
		   ruling_hanafi, ruling_shafii, ruling_maliki, ruling_hanbali,
		   confidence, category, explanation, overrides_keyword, additive_code, active
	FROM ingredient_rulings`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAdditive(s scanner) (*domain.AdditiveRecord, error) {
	var rec domain.AdditiveRecord
	var status, flags string
	if err := s.Scan(&rec.Code, &rec.Name, &rec.Category, &status, &flags, &rec.Explanation); err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	if flags != "" {
		json.Unmarshal([]byte(flags), &rec.RiskFlags)
	}
	return &rec, nil
}

func scanIngredient(s scanner) (*domain.IngredientRuling, error) {
	var rule domain.IngredientRuling
	var matchType, def string
	var hanafi, shafii, maliki, hanbali sql.NullString
	var active int

	if err := s.Scan(
		&rule.ID, &rule.Pattern, &matchType, &rule.Priority, &def,
		&hanafi, &shafii, &maliki, &hanbali,
		&rule.Confidence, &rule.Category, &rule.Explanation,
		&rule.OverridesKeyword, &rule.AdditiveCode, &active,
	); err != nil {
		return nil, err
	}

	rule.MatchType = domain.MatchType(matchType)
	rule.RulingDefault = domain.Status(def)
	rule.Hanafi = nullStatus(hanafi)
	rule.Shafii = nullStatus(shafii)
	rule.Maliki = nullStatus(maliki)
	rule.Hanbali = nullStatus(hanbali)
	rule.Active = active == 1
	return &rule, nil
}

func nullStatus(ns sql.NullString) *domain.Status {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return domain.StatusPtr(domain.Status(ns.String))
}

func statusArg(s *domain.Status) any {
	if s == nil || *s == "" {
		return nil
	}
	return string(*s)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
