package sessiontransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sessionkit/sessionkit/core/session"
)

// Cookie provides HTTP cookie-based session transport: it resolves the session
// identifier per request, materializes the record in the store, and on the
// response handles persistence, identifier rotation, and cookie issuance.
type Cookie struct {
	store *session.Store
	cfg   Config
	log   *slog.Logger
}

// CookieOption configures the cookie transport.
type CookieOption func(*Cookie)

// WithLogger sets the logger for transport diagnostics.
func WithLogger(log *slog.Logger) CookieOption {
	return func(c *Cookie) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCookie creates a cookie-based session transport over the given store.
func NewCookie(store *session.Store, cfg Config, opts ...CookieOption) *Cookie {
	c := &Cookie{
		store: store,
		cfg:   cfg,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handler wraps next with the session request cycle:
//
//  1. Resolve the identifier from the cookie, minting a fresh one when the
//     cookie is absent or malformed.
//  2. Materialize the record in memory, pulling from the backend on a cold
//     cache, and service it.
//  3. Serve the request with the store and identifier installed in the
//     request context.
//  4. Before the response headers flush: delete destroyed sessions, rotate
//     renewed identifiers, reissue the cookie, and persist storable records.
//  5. Trigger any expiry sweeps that have become due.
func (c *Cookie) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := c.sessionID(r)
		ctx := r.Context()

		if !c.store.Resident(id) {
			rec, err := c.store.LoadSession(ctx, id)
			if err != nil {
				// A session we cannot load is a session we can recreate.
				c.log.WarnContext(ctx, "session load failed, starting fresh",
					slog.String("session_id", id), slog.Any("error", err))
			}
			if rec == nil {
				rec = c.store.NewRecord(id)
			}
			c.store.Insert(rec)
		}
		c.store.Service(id)

		ctx = session.NewContext(ctx, c.store)
		ctx = context.WithValue(ctx, idContextKey{}, id)

		sw := &sessionWriter{ResponseWriter: w}
		sw.finalize = func() {
			c.finish(ctx, sw.ResponseWriter, id)
		}

		next.ServeHTTP(sw, r.WithContext(ctx))
		sw.finalizeOnce()

		if err := c.store.SweepIfDue(ctx); err != nil {
			c.log.WarnContext(ctx, "session sweep failed", slog.Any("error", err))
		}
	})
}

// finish completes the session side of the response. Runs exactly once per
// request, before the response headers are written.
func (c *Cookie) finish(ctx context.Context, w http.ResponseWriter, id string) {
	rec, ok := c.store.Lookup(id)
	if !ok {
		// Evicted by a concurrent sweep mid-request; nothing to persist.
		return
	}

	if rec.Destroyed() {
		if err := c.store.DestroySession(ctx, id); err != nil {
			c.log.WarnContext(ctx, "session delete failed",
				slog.String("session_id", id), slog.Any("error", err))
		}
		c.store.Evict(id)
		http.SetCookie(w, c.expiredCookie())
		return
	}

	if rec.Renewed() {
		newID := uuid.NewString()
		if c.store.Rotate(id, newID) {
			id = newID
		}
	}

	http.SetCookie(w, c.sessionCookie(id, rec.Longterm()))

	if err := c.store.StoreSession(ctx, id); err != nil {
		c.log.WarnContext(ctx, "session persist failed",
			slog.String("session_id", id), slog.Any("error", err))
	}
}

// sessionID resolves the session identifier from the request cookie, minting
// a fresh one when the cookie is absent or not a valid identifier.
func (c *Cookie) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(c.cfg.CookieName)
	if err != nil {
		return uuid.NewString()
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return uuid.NewString()
	}
	return cookie.Value
}

func (c *Cookie) sessionCookie(id string, longterm bool) *http.Cookie {
	cfg := c.store.Config()
	lifespan := cfg.Lifespan
	if longterm {
		lifespan = cfg.LongtermLifespan
	}
	return &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    id,
		Path:     c.cfg.CookiePath,
		Domain:   c.cfg.CookieDomain,
		MaxAge:   int(lifespan / time.Second),
		Secure:   c.cfg.CookieSecure,
		HttpOnly: c.cfg.CookieHTTPOnly,
		SameSite: c.cfg.sameSite(),
	}
}

func (c *Cookie) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    "",
		Path:     c.cfg.CookiePath,
		Domain:   c.cfg.CookieDomain,
		MaxAge:   -1,
		Secure:   c.cfg.CookieSecure,
		HttpOnly: c.cfg.CookieHTTPOnly,
		SameSite: c.cfg.sameSite(),
	}
}

// sessionWriter defers the session finalization until the response headers are
// about to flush, so cookie and persistence reflect everything the handler did.
type sessionWriter struct {
	http.ResponseWriter
	finalize func()
	done     bool
}

func (sw *sessionWriter) finalizeOnce() {
	if !sw.done {
		sw.done = true
		sw.finalize()
	}
}

func (sw *sessionWriter) WriteHeader(code int) {
	sw.finalizeOnce()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.finalizeOnce()
	return sw.ResponseWriter.Write(b)
}

// Flush finalizes first: flushing sends the headers, so the cookie and
// persistence must already be in place.
func (sw *sessionWriter) Flush() {
	sw.finalizeOnce()
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// idContextKey is an unexported key type to avoid context key collisions.
type idContextKey struct{}

// SessionID extracts the current session identifier from the request context.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idContextKey{}).(string)
	return id, ok
}

// FromRequest resolves the session store and the current session identifier
// from the request context. Returns session.ErrStoreNotInstalled or
// ErrNoSession when the middleware is not enabled for this request.
func FromRequest(r *http.Request) (*session.Store, string, error) {
	store, err := session.FromContext(r.Context())
	if err != nil {
		return nil, "", err
	}
	id, ok := SessionID(r.Context())
	if !ok {
		return nil, "", ErrNoSession
	}
	return store, id, nil
}
