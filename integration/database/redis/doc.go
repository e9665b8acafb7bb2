// Package redis provides a Redis session persistence backend on go-redis.
//
// Each session is a single key "<table>:<id>" holding the serialized payload,
// with a native TTL derived from the record's expiry. Expired sessions are
// evicted by Redis itself, so the store's backend expiry sweep is a no-op
// here. Count and DeleteAll iterate the namespace with SCAN to stay
// non-blocking on large keyspaces.
//
//	client, err := redis.Connect(ctx, os.Getenv("REDIS_URL"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := session.New(redis.New(client))
package redis
