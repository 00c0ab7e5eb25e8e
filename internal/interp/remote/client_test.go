package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfbook/companion-backend/internal/infrastructure/resilience"
	"github.com/perfbook/companion-backend/internal/interp"
)

// fakeWorker is an in-memory stand-in for the interpreter worker process.
type fakeWorker struct {
	mu       sync.Mutex
	globals  map[string]interface{}
	runs     []string
	runValue interface{}
	runError string
	failures int32 // leading 500 responses for /run
	stops    int32
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{globals: make(map[string]interface{})}
}

func (f *fakeWorker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&f.failures, -1) >= 0 {
			http.Error(w, "worker busy", http.StatusInternalServerError)
			return
		}
		var req struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.runs = append(f.runs, req.Code)
		value, errMsg := f.runValue, f.runError
		f.mu.Unlock()

		resp := map[string]interface{}{"value": value}
		if errMsg != "" {
			resp["error"] = errMsg
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /load", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Name == "" {
			http.Error(w, "missing name", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /interrupt", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.stops, 1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /globals/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/globals/"):]
		f.mu.Lock()
		value, ok := f.globals[name]
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": value, "defined": ok})
	})
	mux.HandleFunc("PUT /globals/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/globals/"):]
		var req struct {
			Value interface{} `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.globals[name] = req.Value
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("DELETE /globals/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/globals/"):]
		f.mu.Lock()
		delete(f.globals, name)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, worker *fakeWorker) *Client {
	t.Helper()
	srv := httptest.NewServer(worker.handler())
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
}

func TestRun_ReturnsValue(t *testing.T) {
	worker := newFakeWorker()
	worker.runValue = "42"
	c := newTestClient(t, worker)

	val, err := c.Run(context.Background(), "6 * 7")

	require.NoError(t, err)
	assert.Equal(t, "42", val)
	assert.Equal(t, []string{"6 * 7"}, worker.runs)
}

func TestRun_InterpreterErrorNotRetried(t *testing.T) {
	worker := newFakeWorker()
	worker.runError = "NameError: x is not defined"
	c := newTestClient(t, worker)

	_, err := c.Run(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NameError")
	// Interpreter-level failures come back as HTTP 200; they are never
	// replayed by the transport retry layer.
	assert.Len(t, worker.runs, 1)
}

func TestRun_TransientFailureRetried(t *testing.T) {
	worker := newFakeWorker()
	worker.runValue = "ok"
	worker.failures = 2
	c := newTestClient(t, worker)

	val, err := c.Run(context.Background(), "1")

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}

func TestLoad(t *testing.T) {
	worker := newFakeWorker()
	c := newTestClient(t, worker)

	err := c.Load(context.Background(), interp.Archive{
		Name: "mastering_performant_code",
		URL:  "https://files.local/pkg.whl",
	})
	require.NoError(t, err)

	err = c.Load(context.Background(), interp.Archive{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker returned")
}

func TestInterrupt_FiresWorkerStop(t *testing.T) {
	worker := newFakeWorker()
	c := newTestClient(t, worker)

	c.Interrupt("execution timed out")

	assert.EqualValues(t, 1, atomic.LoadInt32(&worker.stops))
}

func TestGlobals_RoundTrip(t *testing.T) {
	worker := newFakeWorker()
	c := newTestClient(t, worker)
	g := c.Globals()

	assert.False(t, g.Has("__file__"))

	require.NoError(t, g.Set("__file__", "<snippet>"))
	val, ok := g.Get("__file__")
	require.True(t, ok)
	assert.Equal(t, "<snippet>", val)

	g.Delete("__file__")
	assert.False(t, g.Has("__file__"))
}

func TestRun_BreakerTripsOnDeadWorker(t *testing.T) {
	worker := newFakeWorker()
	worker.failures = 1000
	srv := httptest.NewServer(worker.handler())
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		RetryMax:     0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		_, err := c.Run(context.Background(), "1")
		require.Error(t, err)
	}

	_, err := c.Run(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestClosedClientRejectsCalls(t *testing.T) {
	worker := newFakeWorker()
	c := newTestClient(t, worker)

	require.NoError(t, c.Close())

	_, err := c.Run(context.Background(), "1")
	assert.ErrorIs(t, err, interp.ErrClosed)
	assert.ErrorIs(t, c.Load(context.Background(), interp.Archive{Name: "x"}), interp.ErrClosed)
}
