package interp

import (
	"context"
	"errors"
)

var (
	// ErrInterrupted is returned by Run when an Interrupt cut execution short.
	ErrInterrupted = errors.New("interpreter execution interrupted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("interpreter is closed")
)

// Archive is an installable companion-package payload. Either Data holds the
// fetched archive bytes, or URL points at an archive the runtime fetches
// itself (the browser-worker case).
type Archive struct {
	Name string
	Data []byte
	URL  string
}

// Globals provides dict-like access to the runtime's global scope. Used to
// probe for script-style markers and to clean up redirection leftovers.
type Globals interface {
	Get(name string) (interface{}, bool)
	Set(name string, value interface{}) error
	Has(name string) bool
	Delete(name string)
}

// Interpreter is the embedded runtime capability surface.
type Interpreter interface {
	// Load activates the companion package inside the runtime.
	Load(ctx context.Context, archive Archive) error

	// Run executes code synchronously and returns the expression value of
	// the final statement, if the language has one.
	Run(ctx context.Context, code string) (interface{}, error)

	// Globals exposes the runtime's global scope.
	Globals() Globals

	// Interrupt asks the runtime to abandon the in-flight Run. Best-effort:
	// a runtime with no interrupt capability may ignore it.
	Interrupt(reason string)

	Close() error
}
