// Package server configures the Gin router, middleware chain, and the
// HTTP server lifecycle.
package server
