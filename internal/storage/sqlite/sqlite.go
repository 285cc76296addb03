// Package sqlite implements instrument and bar storage on a local
// SQLite file. It serves as the offline cache: ingest once, then run
// backtests without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps the SQLite handle shared by the stores in this package.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the cache file at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS instruments (
    code       TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    market_cap REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS price_bars (
    code   TEXT NOT NULL,
    date   TEXT NOT NULL,
    open   REAL NOT NULL,
    high   REAL NOT NULL,
    low    REAL NOT NULL,
    close  REAL NOT NULL,
    volume REAL NOT NULL,
    PRIMARY KEY (code, date)
);
`

// dateLayout is how bar dates are stored; lexical order equals
// chronological order.
const dateLayout = "2006-01-02"

// isDuplicateKeyError checks if an error is a primary key or unique
// constraint violation.
func isDuplicateKeyError(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT,
			sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
