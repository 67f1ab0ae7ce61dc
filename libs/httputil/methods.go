// Package httputil provides shared HTTP handler utilities and middleware.
package httputil

// HTTP methods
const (
	Delete  = "DELETE"
	Get     = "GET"
	Head    = "HEAD"
	Options = "OPTIONS"
	Patch   = "PATCH"
	Post    = "POST"
	Put     = "PUT"
)
