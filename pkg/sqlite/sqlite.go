// Package sqlite opens the SQLite handle shared by the stores.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const MemoryPath = ":memory:"

// dsnParams are applied by the driver on every new connection. Timestamps
// are stored and read back in UTC.
var dsnParams = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"3000"},
	"_synchronous":  {"NORMAL"},
	"_loc":          {"UTC"},
}

// Open returns a handle to the database at dbPath, creating the parent
// directory when needed. The pool is limited to one connection: writers
// are serialised and an in-memory database survives between calls.
func Open(dbPath string) (*sql.DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+dsnParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dbPath, err)
	}
	return db, nil
}
