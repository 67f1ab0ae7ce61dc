// Package conc includes helpers for concurrency patterns that avoid some of
// the most common pitfalls.
package conc

import "context"

// Testing should be set to true when running tests for code that uses this
// package. It makes all functionality synchronous and tests deterministic.
var Testing bool

// Go runs the provided function in a goroutine if Testing is not set, and
// synchronously if it is.
func Go(f func()) {
	if Testing {
		f()
		return
	}
	go f()
}

// GoCtx runs the provided function with the given context in a goroutine if
// Testing is not set, and synchronously if it is.
func GoCtx(ctx context.Context, f func(ctx context.Context)) {
	if Testing {
		f(ctx)
		return
	}
	go f(ctx)
}
