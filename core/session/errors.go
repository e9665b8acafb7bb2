package session

import "errors"

var (
	// ErrDatabase is returned when a backend database operation fails due to
	// connection, permission, or driver errors.
	ErrDatabase = errors.New("session database operation failed")
	// ErrEncode is returned when a session payload cannot be serialized for storage.
	ErrEncode = errors.New("failed to encode session payload")
	// ErrDecode is returned when a stored session payload cannot be deserialized.
	// Distinct from ErrDatabase so callers can tell corrupt data from an unreachable store.
	ErrDecode = errors.New("failed to decode session payload")
	// ErrStoreNotInstalled is returned by FromContext when no store was registered
	// in the context, typically because the session middleware is not enabled.
	ErrStoreNotInstalled = errors.New("session store not installed in context")
)
