package repository

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/opensource-food/mizan/internal/domain"
)

// memoryPath selects a private in-memory database, used by one-shot CLI runs.
const memoryPath = ":memory:"

// sqlitePragmas apply to every file-backed connection. WAL lets the API
// read rules while a seed or retention run writes.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

var sqliteDialect = &dialect{
	name: "sqlite",
	dsn:  sqliteDSN,
	tune: func(db *sql.DB, cfg domain.RepositoryConfig) {
		// Each connection to :memory: is a separate database.
		if cfg.SQLitePath == memoryPath {
			db.SetMaxOpenConns(1)
		}
	},
}

// sqliteDSN builds a modernc.org/sqlite URI, creating the parent directory
// of a file database.
func sqliteDSN(cfg domain.RepositoryConfig) (string, error) {
	path := orDefault(cfg.SQLitePath, "./mizan.db")

	q := url.Values{}
	if path == memoryPath {
		q.Add("_pragma", "foreign_keys(ON)")
		return "file::memory:?" + q.Encode(), nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode(), nil
}
