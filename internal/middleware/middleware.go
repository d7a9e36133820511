package middleware

import "net/http"

// Middleware is the common signature for HTTP middleware: a function that
// wraps an http.Handler with behavior running before or after it.
type Middleware func(http.Handler) http.Handler

// CreateStack composes a variadic number of Middleware functions into a
// single Middleware. The first middleware in xs becomes the outermost one
// (executing first); the last wraps the final handler directly.
func CreateStack(xs ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(xs) - 1; i >= 0; i-- {
			x := xs[i]
			next = x(next)
		}

		return next
	}
}
