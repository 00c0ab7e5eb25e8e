package gojart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfbook/companion-backend/internal/interp"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRun_ReturnsCompletionValue(t *testing.T) {
	r := newTestRuntime(t)

	val, err := r.Run(context.Background(), "1 + 2")

	require.NoError(t, err)
	assert.EqualValues(t, 3, val)
}

func TestRun_ScriptError(t *testing.T) {
	r := newTestRuntime(t)

	_, err := r.Run(context.Background(), "throw new Error('boom')")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_ContextCancellationInterrupts(t *testing.T) {
	r := newTestRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, "while (true) {}")

	require.Error(t, err)
	assert.ErrorIs(t, err, interp.ErrInterrupted)
	assert.Less(t, time.Since(start), 3*time.Second)

	// The VM is usable again after an interrupt.
	val, err := r.Run(context.Background(), "'alive'")
	require.NoError(t, err)
	assert.Equal(t, "alive", val)
}

func TestRun_SandboxStripsHostBindings(t *testing.T) {
	r := newTestRuntime(t)

	for _, binding := range []string{"require", "process", "module", "exports"} {
		val, err := r.Run(context.Background(), "typeof "+binding)
		require.NoError(t, err)
		assert.Equal(t, "undefined", val, binding)
	}
}

func TestRun_ConsoleCaptured(t *testing.T) {
	r := newTestRuntime(t)

	_, err := r.Run(context.Background(), "console.log('hello', 42); console.error('bad')")
	require.NoError(t, err)

	raw, ok := r.Globals().Get("__console")
	require.True(t, ok)
	entries, ok := raw.([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]interface{})
	assert.Equal(t, "log", first["level"])
	assert.Equal(t, "hello 42", first["message"])

	second := entries[1].(map[string]interface{})
	assert.Equal(t, "error", second["level"])
}

func TestLoad_EvaluatesBundle(t *testing.T) {
	r := newTestRuntime(t)

	err := r.Load(context.Background(), interp.Archive{
		Name: "companion",
		Data: []byte("var companion = { version: '1.0' };"),
	})

	require.NoError(t, err)
	assert.True(t, r.Globals().Has("companion"))
}

func TestLoad_RequiresInlineData(t *testing.T) {
	r := newTestRuntime(t)

	err := r.Load(context.Background(), interp.Archive{Name: "companion", URL: "https://x/pkg.js"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no inline data")
}

func TestGlobals_RoundTrip(t *testing.T) {
	r := newTestRuntime(t)
	g := r.Globals()

	require.NoError(t, g.Set("__filename", "<snippet>"))
	assert.True(t, g.Has("__filename"))

	val, ok := g.Get("__filename")
	require.True(t, ok)
	assert.Equal(t, "<snippet>", val)

	g.Delete("__filename")
	assert.False(t, g.Has("__filename"))
}

func TestReset_DropsUserState(t *testing.T) {
	r := newTestRuntime(t)

	_, err := r.Run(context.Background(), "var leftover = 1")
	require.NoError(t, err)
	require.True(t, r.Globals().Has("leftover"))

	require.NoError(t, r.Reset())

	assert.False(t, r.Globals().Has("leftover"))
	// Sandbox globals are reinstalled.
	val, err := r.Run(context.Background(), "typeof console")
	require.NoError(t, err)
	assert.Equal(t, "object", val)
}

func TestClose_RejectsFurtherRuns(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, r.Close())

	_, err = r.Run(context.Background(), "1")
	assert.ErrorIs(t, err, interp.ErrClosed)
}
