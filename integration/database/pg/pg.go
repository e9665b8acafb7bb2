package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionkit/sessionkit/core/session"
)

// ErrInvalidTableName is returned when the configured table name contains
// characters that cannot be safely interpolated into DDL/DML.
var ErrInvalidTableName = errors.New("pg: invalid session table name")

// Database implements session.Database on a pgx connection pool.
type Database struct {
	pool *pgxpool.Pool
}

var _ session.Database = (*Database)(nil)

// New creates a PostgreSQL session backend over an existing pool.
func New(pool *pgxpool.Pool) *Database {
	return &Database{pool: pool}
}

// Initiate creates the session table and its expiry index if they do not exist.
func (d *Database) Initiate(ctx context.Context, table string) error {
	if !validTableName(table) {
		return errors.Join(session.ErrDatabase, ErrInvalidTableName)
	}
	_, err := d.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (
			id TEXT NOT NULL PRIMARY KEY,
			data TEXT NOT NULL,
			expires BIGINT NOT NULL
		)`, table))
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	_, err = d.pool.Exec(ctx, fmt.Sprintf(
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
	err := d.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT data FROM %q WHERE id = $1 AND expires > $2`, table),
		id, time.Now().Unix(),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err := d.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %q (id, data, expires) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires = EXCLUDED.expires`, table),
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
	_, err := d.pool.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %q WHERE expires <= $1`, table), time.Now().Unix())
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
	_, err := d.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, table), id)
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
	_, err := d.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %q`, table))
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
	err := d.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n)
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
