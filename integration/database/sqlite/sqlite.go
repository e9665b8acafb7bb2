package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/sessionkit/sessionkit/core/session"
)

// ErrInvalidTableName is returned when the configured table name contains
// characters that cannot be safely interpolated into DDL/DML.
var ErrInvalidTableName = errors.New("sqlite: invalid session table name")

// Database implements session.Database on a SQLite database, suitable for
// single-node deployments and tests where sessions should survive restarts
// without an external database.
type Database struct {
	db *sql.DB
}

var _ session.Database = (*Database)(nil)

// New creates a SQLite session backend over an existing database handle.
func New(db *sql.DB) *Database {
	return &Database{db: db}
}

// Open opens (or creates) a SQLite database at path and returns a session
// backend over it. SQLite allows a single writer, so the pool is capped at
// one connection.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Join(session.ErrDatabase, err)
	}
	db.SetMaxOpenConns(1)
	return &Database{db: db}, nil
}

// Close closes the underlying database handle.
func (d *Database) Close() error {
	return d.db.Close()
}

// Initiate creates the session table and its expiry index if they do not exist.
func (d *Database) Initiate(ctx context.Context, table string) error {
	if !validTableName(table) {
		return errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (
			id TEXT NOT NULL PRIMARY KEY,
			data TEXT NOT NULL,
			expires INTEGER NOT NULL
		)`, table))
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	_, err = d.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %q ON %q (expires)`, table+"_expires_idx", table))
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// Load returns the payload for id, skipping records already past their expiry.
func (d *Database) Load(ctx context.Context, id, table string) (string, bool, error) {
	if !validTableName(table) {
		return "", false, errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	var payload string
	err := d.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT data FROM %q WHERE id = ? AND expires > ?`, table),
		id, time.Now().Unix(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(session.ErrDatabase, err)
	}
	return payload, true, nil
}

// Store upserts the payload keyed by id.
func (d *Database) Store(ctx context.Context, id, payload string, expires int64, table string) error {
	if !validTableName(table) {
		return errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (id, data, expires) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires = excluded.expires`, table),
		id, payload, expires)
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteByExpiry removes all records past their expiry.
func (d *Database) DeleteByExpiry(ctx context.Context, table string) error {
	if !validTableName(table) {
		return errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %q WHERE expires <= ?`, table), time.Now().Unix())
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteOneByID removes the record for id.
func (d *Database) DeleteOneByID(ctx context.Context, id, table string) error {
	if !validTableName(table) {
		return errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, table), id)
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteAll removes every record in the table.
func (d *Database) DeleteAll(ctx context.Context, table string) error {
	if !validTableName(table) {
		return errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, table))
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// Count returns the number of stored records.
func (d *Database) Count(ctx context.Context, table string) (int64, error) {
	if !validTableName(table) {
		return 0, errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	var n int64
	err := d.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n)
	if err != nil {
		return 0, errors.Join(session.ErrDatabase, err)
	}
	return n, nil
}

// validTableName allows only identifiers that are safe to interpolate.
func validTableName(table string) bool {
	if table == "" {
		return false
	}
	for _, r := range table {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
