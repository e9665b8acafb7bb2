package sessiontransport

import "errors"

var (
	// ErrNoSession is returned when no session identifier is present in the
	// request context, typically because the middleware is not enabled.
	ErrNoSession = errors.New("sessiontransport: no session in request context")
)
