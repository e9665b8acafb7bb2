// Package session provides a concurrency-safe session-state cache with
// optional durable persistence.
//
// The store keeps per-session key/value data in a sharded in-memory cache and
// can mirror it to any backend implementing the Database interface, so
// sessions survive process restarts. Each record carries lifecycle flags
// (renewed, destroyed, long-term, storable) and two expiry windows: one for
// the backend record and a sliding one for in-memory residency.
//
// # Basic Usage
//
// Create a store and drive it from your request-handling layer:
//
//	store := session.New(nil, session.WithOptions(
//		session.WithLifespan(24*time.Hour),
//		session.WithMemoryLifespan(time.Hour),
//	))
//
//	id := uuid.NewString()
//	store.Insert(store.NewRecord(id))
//	store.Service(id)
//
//	store.Set(id, "cart", []string{"sku-1", "sku-2"})
//	cart, ok := session.Get[[]string](store, id, "cart")
//
// With a persistence backend, wire one of the integration/database drivers:
//
//	db := pg.New(pool)
//	store := session.New(db, session.WithConfig(cfg))
//	if err := store.Initiate(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Lifecycle
//
// A session identifier cycles through a small state machine: absent, resident
// and active, resident with a pending reset after Destroy, and back to active
// (cleared) on the next Service. Eviction sweeps or Evict return it to absent.
// There is no terminal state; an identifier lives as long as the transport
// layer keeps presenting it.
//
// Destroy is lazy on purpose: the record is only cleared on the next Service,
// so a destroy-then-read within one request cycle observes a consistent
// destroyed view rather than a half-cleared one.
//
// # Sweeps
//
// Expiry sweeps run lazily on traffic via SweepIfDue rather than from a
// background scheduler. The in-memory sweep evicts records whose residency
// window has passed; the backend sweep range-deletes records past their
// expiry. A process with zero traffic never sweeps, which is acceptable since
// sessions only accumulate in response to traffic; hosts that want
// time-coupled sweeps can call SweepIfDue from their own ticker.
//
// # Concurrency
//
// Mutation is serialized per identifier: every record carries its own mutex,
// and the cache's shard locks guard only map structure. Operations on
// different identifiers never block each other, and read-modify-write pairs
// like GetRemove are atomic from the caller's perspective. Missing-identifier
// conditions on lifecycle and data operations are logged and treated as
// no-ops, since a session evicted by a concurrent sweep between resolution
// and use is an expected race, not a defect.
package session
