package domain

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Mizan configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Tier determines feature availability: "community" or "pro"
	Tier string `yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus"`
	Engine     EngineConfig     `yaml:"engine"`
	Worker     WorkerConfig     `yaml:"worker"`
	Retention  RetentionConfig  `yaml:"retention"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds

	// CORSOrigins lists browser origins allowed to call the API; empty allows all.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// EngineConfig holds halal engine settings.
type EngineConfig struct {
	// RuleCacheTTL is how long the ingredient rule snapshot is served before a lazy refresh.
	RuleCacheTTL time.Duration `yaml:"ruleCacheTTL"`

	DefaultMadhab     Madhab     `yaml:"defaultMadhab"`
	DefaultStrictness Strictness `yaml:"defaultStrictness"`

	// AnalysisCacheTTL bounds how long an identical request is answered from cache.
	AnalysisCacheTTL time.Duration `yaml:"analysisCacheTTL"`
}

// WorkerConfig holds async worker settings.
type WorkerConfig struct {
	Enabled bool `yaml:"enabled"`

	// QueueGroup shares scans among the workers of every node in the group.
	QueueGroup string `yaml:"queueGroup"`
}

// RetentionConfig controls pruning of stored analyses.
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"` // cron expression
	MaxAge   time.Duration `yaml:"maxAge"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"serviceName"`
	ExporterType string `yaml:"exporterType"` // none, stdout, otlp
	Endpoint     string `yaml:"endpoint"`     // OTLP/HTTP host:port

	// SampleRatio is the fraction of root traces recorded, in [0, 1].
	SampleRatio float64 `yaml:"sampleRatio"`
	Insecure    bool    `yaml:"insecure"`
}

// Deployment tiers. Plain strings, unrelated to the verdict Tier type.
const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro = "pro"
)

// DefaultRuleCacheTTL is the ingredient rule snapshot lifetime.
const DefaultRuleCacheTTL = 10 * time.Minute

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:            "sqlite",
			SQLitePath:        "./mizan.db",
			UseLegacyFallback: true,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			RuleCacheTTL:      DefaultRuleCacheTTL,
			DefaultMadhab:     MadhabGeneral,
			DefaultStrictness: StrictnessModerate,
			AnalysisCacheTTL:  time.Hour,
		},
		Worker: WorkerConfig{
			QueueGroup: "mizan-workers",
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "@daily",
			MaxAge:   30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "mizan",
			SampleRatio: 1,
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:            "postgres",
		PostgresHost:      "localhost",
		PostgresPort:      5432,
		PostgresDB:        "mizan",
		UseLegacyFallback: true,
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig builds a configuration from an optional YAML file and MIZAN_*
// environment variables. An empty path starts from the tier defaults.
//
// The loading sequence is:
// 1. Pick defaults (MIZAN_TIER=pro selects ProConfig)
// 2. Overlay the YAML file, if any
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if os.Getenv("MIZAN_TIER") == TierPro {
		cfg = ProConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("MIZAN_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("MIZAN_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = i
		}
	}
	if val := os.Getenv("MIZAN_DB_DRIVER"); val != "" {
		cfg.Repository.Driver = val
	}
	if val := os.Getenv("MIZAN_SQLITE_PATH"); val != "" {
		cfg.Repository.SQLitePath = val
	}
	if val := os.Getenv("MIZAN_POSTGRES_HOST"); val != "" {
		cfg.Repository.PostgresHost = val
	}
	if val := os.Getenv("MIZAN_POSTGRES_USER"); val != "" {
		cfg.Repository.PostgresUser = val
	}
	if val := os.Getenv("MIZAN_POSTGRES_PASSWORD"); val != "" {
		cfg.Repository.PostgresPassword = val
	}
	if val := os.Getenv("MIZAN_POSTGRES_DB"); val != "" {
		cfg.Repository.PostgresDB = val
	}
	if val := os.Getenv("MIZAN_REDIS_ADDR"); val != "" {
		cfg.Cache.RedisAddr = val
	}
	if val := os.Getenv("MIZAN_NATS_URL"); val != "" {
		cfg.EventBus.NATSUrl = val
	}
	if val := os.Getenv("MIZAN_RULE_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.RuleCacheTTL = d
		}
	}
	if val := os.Getenv("MIZAN_DEFAULT_MADHAB"); val != "" {
		cfg.Engine.DefaultMadhab = Madhab(strings.ToLower(val))
	}
	if val := os.Getenv("MIZAN_DEFAULT_STRICTNESS"); val != "" {
		cfg.Engine.DefaultStrictness = Strictness(strings.ToLower(val))
	}
	if val := os.Getenv("MIZAN_ASYNC_WORKER"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Worker.Enabled = b
		}
	}
	if val := os.Getenv("MIZAN_TRACING_EXPORTER"); val != "" {
		cfg.Tracing.ExporterType = val
	}
	if val := os.Getenv("MIZAN_OTLP_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}
	if val := os.Getenv("MIZAN_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if os.Getenv("MIZAN_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
}

// Validate checks the configuration for values the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("repository.driver must be sqlite or postgres, got %q", c.Repository.Driver)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.type must be memory or redis, got %q", c.Cache.Type)
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("eventBus.type must be channel or nats, got %q", c.EventBus.Type)
	}
	if c.Engine.RuleCacheTTL <= 0 {
		return fmt.Errorf("engine.ruleCacheTTL must be positive")
	}
	if !c.Engine.DefaultMadhab.Valid() {
		return fmt.Errorf("engine.defaultMadhab %q is not a known madhab", c.Engine.DefaultMadhab)
	}
	if !c.Engine.DefaultStrictness.Valid() {
		return fmt.Errorf("engine.defaultStrictness %q is not a known strictness", c.Engine.DefaultStrictness)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sampleRatio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}
	switch c.Tracing.ExporterType {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporterType must be none, stdout or otlp, got %q", c.Tracing.ExporterType)
	}
	if c.Retention.Enabled && c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention.maxAge must be positive when retention is enabled")
	}
	return nil
}
