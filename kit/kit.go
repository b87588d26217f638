// CLAUDE:SUMMARY Endpoint and middleware primitives shared by every transport.
// Package kit holds the transport-agnostic endpoint plumbing: a request in, a
// response out, middleware chained around it.
package kit

import "context"

// Endpoint is one callable operation.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares outermost-first.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
