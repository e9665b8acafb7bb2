// Package sessiontransport connects the session store to net/http.
//
// The Cookie transport owns everything the store treats as external: session
// identifier minting and rotation, cookie issuance, backend loads on a cold
// cache, persistence of mutated records on the response, and triggering the
// store's lazy expiry sweeps.
//
// Wrap a handler with the middleware and reach the session from any handler
// below it:
//
//	store := session.New(db)
//	transport := sessiontransport.NewCookie(store, sessiontransport.DefaultConfig())
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
//		store, id, err := sessiontransport.FromRequest(r)
//		if err != nil {
//			http.Error(w, "session middleware not enabled", http.StatusInternalServerError)
//			return
//		}
//		store.Set(id, "last_seen", time.Now())
//	})
//
//	http.ListenAndServe(":8080", transport.Handler(mux))
//
// Persistence is synchronous from the transport's perspective: the response
// headers are not flushed until the record write completes, so a session read
// shortly after a write observes the write even on a cold cache.
package sessiontransport
