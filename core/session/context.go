package session

import "context"

// storeContextKey is an unexported key type to avoid context key collisions.
type storeContextKey struct{}

// NewContext returns a new context carrying the store, making it retrievable
// from whatever per-request context the hosting layer provides.
func NewContext(ctx context.Context, s *Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, storeContextKey{}, s)
}

// FromContext extracts the store previously installed with NewContext.
// Returns ErrStoreNotInstalled when no store was registered, so callers get a
// distinct condition instead of a nil dereference.
func FromContext(ctx context.Context) (*Store, error) {
	if ctx == nil {
		return nil, ErrStoreNotInstalled
	}
	s, ok := ctx.Value(storeContextKey{}).(*Store)
	if !ok {
		return nil, ErrStoreNotInstalled
	}
	return s, nil
}
