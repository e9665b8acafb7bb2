// Package pg provides a PostgreSQL session persistence backend on pgx.
//
// Sessions live in a single table of (id, data, expires) rows with an index on
// the numeric expiry column so expiry sweeps are a single range delete. The
// table name comes from the store configuration and must be a plain identifier.
//
//	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := session.New(pg.New(pool))
//	if err := store.Initiate(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Writes are last-write-wins upserts with no conflict detection; two processes
// sharing the table race on the same identifier exactly as two requests racing
// in one process do.
package pg
