package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

// DSN is a parsed DATABASE_URL.
type DSN struct {
	Path   string // filesystem path, or ":memory:"
	Params url.Values
}

// Memory reports whether the DSN names an in-memory database.
func (d DSN) Memory() bool {
	return d.Path == memoryPath || d.Params.Get("mode") == "memory"
}

// String renders the DSN in the form go-sqlite3 accepts, with the
// connection options every pooled connection needs.
func (d DSN) String() string {
	params := url.Values{}
	for k, v := range d.Params {
		params[k] = v
	}
	setDefault(params, "_foreign_keys", "on")
	setDefault(params, "_busy_timeout", "5000")
	setDefault(params, "_txlock", "immediate")
	if !d.Memory() {
		setDefault(params, "_journal_mode", "WAL")
	}
	return "file:" + d.Path + "?" + params.Encode()
}

func setDefault(v url.Values, key, value string) {
	if _, ok := v[key]; !ok {
		v.Set(key, value)
	}
}

// ParseDatabaseURL accepts "sqlite:path", "sqlite://path", "file:path" or
// a bare path, each optionally followed by "?params".
func ParseDatabaseURL(raw string) (DSN, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DSN{}, fmt.Errorf("database url is empty")
	}

	for _, prefix := range []string{"sqlite3://", "sqlite://", "sqlite3:", "sqlite:", "file:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	if i := strings.Index(s, "://"); i >= 0 {
		return DSN{}, fmt.Errorf("unsupported database url scheme %q", s[:i])
	}

	path, query, _ := strings.Cut(s, "?")
	if path == "" {
		return DSN{}, fmt.Errorf("database url %q has no path", raw)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return DSN{}, fmt.Errorf("parsing database url parameters: %w", err)
	}

	return DSN{Path: path, Params: params}, nil
}

// OpenConnection opens a pool over dsn. The parent directory of an on-disk
// database is created if missing. In-memory databases are pinned to a single
// connection since each connection would otherwise see its own database.
func OpenConnection(dsn DSN, maxConns int) (*sql.DB, error) {
	if !dsn.Memory() {
		if dir := filepath.Dir(dsn.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dsn.Memory() || maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return db, nil
}
