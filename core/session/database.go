package session

import "context"

// Database is the persistence contract a durable backend must implement for
// sessions to survive process restarts. Every call is scoped to a table or
// key namespace supplied by the store's configuration. Implementations must
// be safe for concurrent use; failures should wrap ErrDatabase.
type Database interface {
	// Initiate idempotently creates the backing table/schema if it does not exist.
	Initiate(ctx context.Context, table string) error
	// Load returns the serialized payload for id, or ("", false) when absent
	// or already past its expiry.
	Load(ctx context.Context, id, table string) (string, bool, error)
	// Store writes the serialized payload keyed by id, replacing any previous
	// value. The expiry is a unix timestamp kept alongside the payload for
	// range-based expiry deletes.
	Store(ctx context.Context, id, payload string, expires int64, table string) error
	// DeleteByExpiry removes all records whose expiry has passed.
	DeleteByExpiry(ctx context.Context, table string) error
	// DeleteOneByID removes the record for id, if any.
	DeleteOneByID(ctx context.Context, id, table string) error
	// DeleteAll removes every record in the table.
	DeleteAll(ctx context.Context, table string) error
	// Count returns the number of stored records.
	Count(ctx context.Context, table string) (int64, error)
}

// NullDatabase is the no-op Database for purely in-memory operation. Loads are
// always absent and every write succeeds without doing anything.
type NullDatabase struct{}

// Initiate does nothing.
func (NullDatabase) Initiate(_ context.Context, _ string) error { return nil }

// Load always reports absence.
func (NullDatabase) Load(_ context.Context, _, _ string) (string, bool, error) {
	return "", false, nil
}

// Store does nothing.
func (NullDatabase) Store(_ context.Context, _, _ string, _ int64, _ string) error { return nil }

// DeleteByExpiry does nothing.
func (NullDatabase) DeleteByExpiry(_ context.Context, _ string) error { return nil }

// DeleteOneByID does nothing.
func (NullDatabase) DeleteOneByID(_ context.Context, _, _ string) error { return nil }

// DeleteAll does nothing.
func (NullDatabase) DeleteAll(_ context.Context, _ string) error { return nil }

// Count always returns zero.
func (NullDatabase) Count(_ context.Context, _ string) (int64, error) { return 0, nil }
