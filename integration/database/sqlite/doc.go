// Package sqlite provides a SQLite session persistence backend on the pure-Go
// modernc.org/sqlite driver.
//
// It mirrors the pg backend's single-table layout and is useful for
// single-node deployments, development, and tests where sessions should
// survive restarts without running an external database.
//
//	db, err := sqlite.Open(filepath.Join(dataDir, "sessions.db"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//	store := session.New(db)
//	if err := store.Initiate(ctx); err != nil {
//		log.Fatal(err)
//	}
package sqlite
