// Package interptest provides an in-memory Interpreter for tests.
package interptest

import (
	"context"
	"strings"
	"sync"

	"github.com/perfbook/companion-backend/internal/interp"
)

// Script customizes the fake's response to a single Run call. The first
// Script whose Match substring appears in the code wins.
type Script struct {
	Match string
	Value interface{}
	Err   error
	// Block makes the Run wait for ctx cancellation or Interrupt,
	// simulating a runaway snippet.
	Block bool
}

// Fake is a scriptable Interpreter that records everything it is asked to
// run. Safe for concurrent use so tests can exercise the installer's
// in-flight guard.
type Fake struct {
	mu      sync.Mutex
	globals map[string]interface{}
	scripts []Script

	Ran         []string
	Loaded      []interp.Archive
	Interrupts  []string
	LoadErr     error
	interrupted chan struct{}
}

// NewFake creates an empty fake interpreter.
func NewFake() *Fake {
	return &Fake{
		globals:     make(map[string]interface{}),
		interrupted: make(chan struct{}, 1),
	}
}

// Stub registers a scripted response.
func (f *Fake) Stub(s Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, s)
}

func (f *Fake) Load(ctx context.Context, archive interp.Archive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loaded = append(f.Loaded, archive)
	return f.LoadErr
}

func (f *Fake) Run(ctx context.Context, code string) (interface{}, error) {
	f.mu.Lock()
	f.Ran = append(f.Ran, code)
	var matched *Script
	for i := range f.scripts {
		if strings.Contains(code, f.scripts[i].Match) {
			matched = &f.scripts[i]
			break
		}
	}
	f.mu.Unlock()

	if matched == nil {
		return nil, nil
	}
	if matched.Block {
		select {
		case <-ctx.Done():
			return nil, interp.ErrInterrupted
		case <-f.interrupted:
			return nil, interp.ErrInterrupted
		}
	}
	return matched.Value, matched.Err
}

func (f *Fake) Globals() interp.Globals {
	return fakeGlobals{fake: f}
}

func (f *Fake) Interrupt(reason string) {
	f.mu.Lock()
	f.Interrupts = append(f.Interrupts, reason)
	f.mu.Unlock()
	select {
	case f.interrupted <- struct{}{}:
	default:
	}
}

func (f *Fake) Close() error { return nil }

// RanMatching returns recorded Run calls containing the substring.
func (f *Fake) RanMatching(substr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, code := range f.Ran {
		if strings.Contains(code, substr) {
			out = append(out, code)
		}
	}
	return out
}

type fakeGlobals struct {
	fake *Fake
}

func (g fakeGlobals) Get(name string) (interface{}, bool) {
	g.fake.mu.Lock()
	defer g.fake.mu.Unlock()
	v, ok := g.fake.globals[name]
	return v, ok
}

func (g fakeGlobals) Set(name string, value interface{}) error {
	g.fake.mu.Lock()
	defer g.fake.mu.Unlock()
	g.fake.globals[name] = value
	return nil
}

func (g fakeGlobals) Has(name string) bool {
	_, ok := g.Get(name)
	return ok
}

func (g fakeGlobals) Delete(name string) {
	g.fake.mu.Lock()
	defer g.fake.mu.Unlock()
	delete(g.fake.globals, name)
}
