package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/opensource-food/mizan/internal/domain"
)

var postgresDialect = &dialect{
	name:     "postgres",
	numbered: true,
	dsn:      postgresDSN,
	tune:     func(*sql.DB, domain.RepositoryConfig) {},
}

// postgresDSN builds a libpq keyword/value connection string. Query
// deadlines come from the caller's context; connect_timeout only bounds
// connection setup.
func postgresDSN(cfg domain.RepositoryConfig) (string, error) {
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("invalid postgres port %d", port)
	}

	params := [][2]string{
		{"host", orDefault(cfg.PostgresHost, "localhost")},
		{"port", strconv.Itoa(port)},
		{"user", cfg.PostgresUser},
		{"password", cfg.PostgresPassword},
		{"dbname", orDefault(cfg.PostgresDB, "mizan")},
		{"sslmode", orDefault(cfg.PostgresSSLMode, "disable")},
		{"connect_timeout", "5"},
		{"application_name", "mizan"},
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+pqQuote(p[1]))
	}
	return strings.Join(parts, " "), nil
}

// pqQuote single-quotes a value when libpq would otherwise split or
// misread it.
func pqQuote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
