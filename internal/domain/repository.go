// Package domain defines the core interfaces and types for Mizan.
package domain

import (
	"context"
	"time"
)

// RuleRepository is the read-only rule corpus the engine resolves against.
// Implementations must answer each call with a single batched query.
type RuleRepository interface {
	// FetchAdditivesByCodes returns the records for the given canonical codes.
	// Unknown codes are simply absent from the result.
	FetchAdditivesByCodes(ctx context.Context, codes []string) ([]AdditiveRecord, error)

	// FetchMadhabRulings returns the (code, madhab) rulings for the given codes.
	FetchMadhabRulings(ctx context.Context, codes []string, madhab Madhab) ([]MadhabRuling, error)

	// FetchActiveIngredientRulings returns every active ingredient rule.
	FetchActiveIngredientRulings(ctx context.Context) ([]IngredientRuling, error)
}

// Repository defines the interface for data persistence.
type Repository interface {
	RuleRepository

	// Corpus maintenance
	SaveAdditive(ctx context.Context, rec *AdditiveRecord) error
	GetAdditive(ctx context.Context, code string) (*AdditiveRecord, error)
	SaveMadhabRuling(ctx context.Context, ruling *MadhabRuling) error
	SaveIngredientRuling(ctx context.Context, rule *IngredientRuling) error
	GetIngredientRuling(ctx context.Context, id string) (*IngredientRuling, error)

	// Analysis results
	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)
	DeleteAnalysesBefore(ctx context.Context, before time.Time) (int64, error)

	// Alert rules
	SaveAlertRule(ctx context.Context, rule *AlertRule) error
	ListAlertRules(ctx context.Context) ([]*AlertRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDB"`
	PostgresSSLMode  string `yaml:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`

	// UseLegacyFallback layers the built-in legacy additive table under the database.
	UseLegacyFallback bool `yaml:"useLegacyFallback"`
}
