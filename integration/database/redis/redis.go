package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sessionkit/sessionkit/core/session"
)

// scanBatchSize is the COUNT hint for SCAN-based iteration.
const scanBatchSize = 1000

// Database implements session.Database on a Redis client. Session payloads are
// stored under "<table>:<id>" keys with native TTLs derived from the record
// expiry, so DeleteByExpiry has nothing to do: Redis evicts expired sessions
// itself.
type Database struct {
	client redis.UniversalClient
}

var _ session.Database = (*Database)(nil)

// New creates a Redis session backend over an existing client.
func New(client redis.UniversalClient) *Database {
	return &Database{client: client}
}

// Connect creates a Redis client from a connection URL and verifies
// connectivity with a ping before returning it.
func Connect(ctx context.Context, connectionURL string) (*redis.Client, error) {
	if connectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	opts, err := redis.ParseURL(connectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrHealthcheckFailed, err)
	}
	return client, nil
}

// Initiate is a no-op; Redis needs no schema.
func (*Database) Initiate(_ context.Context, _ string) error {
	return nil
}

// Load returns the payload for id. A missing key is a valid absence.
func (d *Database) Load(ctx context.Context, id, table string) (string, bool, error) {
	payload, err := d.client.Get(ctx, key(table, id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(session.ErrDatabase, err)
	}
	return payload, true, nil
}

// Store writes the payload with a TTL running until the record expiry.
// Already-expired records are deleted instead of written.
func (d *Database) Store(ctx context.Context, id, payload string, expires int64, table string) error {
	ttl := time.Until(time.Unix(expires, 0))
	if ttl <= 0 {
		return d.DeleteOneByID(ctx, id, table)
	}
	if err := d.client.Set(ctx, key(table, id), payload, ttl).Err(); err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteByExpiry is a no-op; key TTLs already purge expired sessions.
func (*Database) DeleteByExpiry(_ context.Context, _ string) error {
	return nil
}

// DeleteOneByID removes the session key for id.
func (d *Database) DeleteOneByID(ctx context.Context, id, table string) error {
	if err := d.client.Del(ctx, key(table, id)).Err(); err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteAll removes every session key in the namespace, scanning in batches to
// avoid blocking the server.
func (d *Database) DeleteAll(ctx context.Context, table string) error {
	iter := d.client.Scan(ctx, 0, table+":*", scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := d.client.Del(ctx, batch...).Err(); err != nil {
				return errors.Join(session.ErrDatabase, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	if len(batch) > 0 {
		if err := d.client.Del(ctx, batch...).Err(); err != nil {
			return errors.Join(session.ErrDatabase, err)
		}
	}
	return nil
}

// Count returns the number of session keys in the namespace.
func (d *Database) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	iter := d.client.Scan(ctx, 0, table+":*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Join(session.ErrDatabase, err)
	}
	return n, nil
}

func key(table, id string) string {
	return table + ":" + id
}
