package gojart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/perfbook/companion-backend/internal/interp"
)

// Runtime wraps a goja VM behind the interp.Interpreter surface.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex
	closed bool
}

// Config defines VM limits.
type Config struct {
	MaxCallStackSize int
	EnableConsole    bool
}

// DefaultConfig returns the limits used by the execution service.
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}

// New creates a sandboxed runtime.
func New(config Config) (*Runtime, error) {
	r := &Runtime{
		vm:     goja.New(),
		config: config,
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load evaluates a script bundle into the VM's global scope. The companion
// package for the JavaScript profile ships as a plain source bundle, so
// activation is a single evaluation.
func (r *Runtime) Load(ctx context.Context, archive interp.Archive) error {
	if len(archive.Data) == 0 {
		return fmt.Errorf("gojart: archive %q has no inline data", archive.Name)
	}
	_, err := r.Run(ctx, string(archive.Data))
	if err != nil {
		return fmt.Errorf("gojart: load %q: %w", archive.Name, err)
	}
	return nil
}

// Run executes code and returns the completion value. Context cancellation
// maps onto vm.Interrupt, which goja polls between instructions.
func (r *Runtime) Run(ctx context.Context, code string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, interp.ErrClosed
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err().Error())
		case <-done:
		}
	}()

	val, err := r.vm.RunString(code)
	close(done)

	if err != nil {
		var interrupted *goja.InterruptedError
		if ok := asInterrupted(err, &interrupted); ok {
			r.vm.ClearInterrupt()
			return nil, fmt.Errorf("%w: %v", interp.ErrInterrupted, interrupted.Value())
		}
		return nil, err
	}
	return exportValue(val), nil
}

// Globals exposes the VM's global object.
func (r *Runtime) Globals() interp.Globals {
	return vmGlobals{vm: r.vm}
}

// Interrupt asks the VM to abandon the in-flight Run. Deliberately does not
// take the mutex; Run holds it for the duration of the call being aborted.
func (r *Runtime) Interrupt(reason string) {
	if vm := r.vm; vm != nil {
		vm.Interrupt(reason)
	}
}

// Reset replaces the VM with a fresh one, dropping all user state.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return interp.ErrClosed
	}
	r.vm = goja.New()
	return r.setupGlobals()
}

// Close releases the VM.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.vm = nil
	return nil
}

// setupGlobals strips dangerous bindings and installs a console whose output
// lands in the __console global, where the language profile collects it.
func (r *Runtime) setupGlobals() error {
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	if r.config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		console.Set("info", r.makeConsoleFunc("info"))
		r.vm.Set("console", console)
	}

	// Timers are no-ops; the pipeline runs strictly synchronous code.
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	return nil
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		entry := map[string]interface{}{
			"level":   level,
			"message": msg,
			"time":    time.Now().UnixMilli(),
		}
		existing := r.vm.Get("__console")
		var entries []interface{}
		if existing != nil && !goja.IsUndefined(existing) && !goja.IsNull(existing) {
			if arr, ok := existing.Export().([]interface{}); ok {
				entries = arr
			}
		}
		r.vm.Set("__console", append(entries, entry))

		return goja.Undefined()
	}
}

func asInterrupted(err error, target **goja.InterruptedError) bool {
	ie, ok := err.(*goja.InterruptedError)
	if ok {
		*target = ie
	}
	return ok
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// vmGlobals adapts the goja global object to interp.Globals.
type vmGlobals struct {
	vm *goja.Runtime
}

func (g vmGlobals) Get(name string) (interface{}, bool) {
	val := g.vm.Get(name)
	if val == nil || goja.IsUndefined(val) {
		return nil, false
	}
	return val.Export(), true
}

func (g vmGlobals) Set(name string, value interface{}) error {
	return g.vm.GlobalObject().Set(name, value)
}

func (g vmGlobals) Has(name string) bool {
	val := g.vm.Get(name)
	return val != nil && !goja.IsUndefined(val)
}

func (g vmGlobals) Delete(name string) {
	g.vm.GlobalObject().Delete(name)
}
