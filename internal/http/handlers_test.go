package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfbook/companion-backend/internal/content"
	"github.com/perfbook/companion-backend/internal/exec"
	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/install"
	"github.com/perfbook/companion-backend/internal/interp/interptest"
	"github.com/perfbook/companion-backend/internal/lang"
	"github.com/perfbook/companion-backend/internal/logging"
	"github.com/perfbook/companion-backend/internal/rewrite"
	"github.com/perfbook/companion-backend/internal/testrun"
)

type stubLoader struct {
	chapters map[string]content.Chapter
}

func (s *stubLoader) Chapters() ([]string, error) {
	var ids []string
	for id := range s.chapters {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *stubLoader) Chapter(id string) (content.Chapter, error) {
	ch, ok := s.chapters[id]
	if !ok {
		return content.Chapter{}, fmt.Errorf("content: unknown chapter %s", id)
	}
	return ch, nil
}

type testServer struct {
	router *gin.Engine
	rt     *interptest.Fake
	engine *exec.Engine
}

func newTestServer(t *testing.T, loader content.Loader) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rt := interptest.NewFake()
	profile := lang.Python("mastering_performant_code")
	installer := install.New(install.Package{
		Name: "mastering_performant_code",
		URL:  "https://files.local/pkg.whl",
	}, nil, profile, logging.NewNop())
	rewriter, err := rewrite.NewDefault()
	require.NoError(t, err)
	engine := exec.New(rt, profile, installer, rewriter, logging.NewNop(), exec.Config{
		DefaultTimeout: 5 * time.Second,
		CaptureOutput:  true,
	})
	collector := testrun.New(engine, logging.NewNop())
	handlers := NewHandlers(engine, collector, loader, monitoring.NewPerf(16))

	router := gin.New()
	router.GET("/health", handlers.Health)
	api := router.Group("/api")
	api.POST("/install", handlers.Install)
	api.GET("/install/status", handlers.InstallStatus)
	api.POST("/transform", handlers.Transform)
	api.POST("/transform/diagnostics", handlers.Diagnostics)
	api.POST("/execute", handlers.Execute)
	api.POST("/execute/transform", handlers.TransformAndExecute)
	api.POST("/tests/run", handlers.RunTests)
	api.GET("/chapters", handlers.ListChapters)
	api.GET("/chapters/:id", handlers.GetChapter)
	api.POST("/reset", handlers.Reset)
	api.GET("/stats", handlers.Stats)

	return &testServer{router: router, rt: rt, engine: engine}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
}

func TestInstall_Flow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/install", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["installed"])

	// Idempotent second call.
	w = s.do(t, http.MethodPost, "/api/install", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.rt.Loaded, 1)

	w = s.do(t, http.MethodGet, "/api/install/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "installed", decode(t, w)["status"])
}

func TestInstall_Failure(t *testing.T) {
	s := newTestServer(t, nil)
	s.rt.LoadErr = errors.New("network down")

	w := s.do(t, http.MethodPost, "/api/install", nil)

	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["installed"])
	assert.Contains(t, body["error"], "network down")
}

func TestTransform(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/transform", gin.H{
		"code": "from src.chapter_01.dynamic_array import DynamicArray",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "from mastering_performant_code.chapter_01.dynamic_array import DynamicArray", body["code"])
	assert.NotNil(t, body["diagnostics"])
}

func TestTransform_MissingCode(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/transform", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecute_AlwaysStructuredResult(t *testing.T) {
	s := newTestServer(t, nil)
	s.rt.Stub(interptest.Script{
		Match: "raise ValueError",
		Err:   errors.New("ValueError: boom"),
	})

	w := s.do(t, http.MethodPost, "/api/execute", gin.H{
		"code": "raise ValueError('boom')",
	})

	// A raising snippet is still HTTP 200 with a structured result.
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "ValueError")
}

func TestExecuteTransform_InstallsFirst(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/execute/transform", gin.H{
		"code": "from src.a import x",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["transformation_info"])
	assert.Len(t, s.rt.Loaded, 1)
}

func TestRunTests_NoLoader(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/tests/run", gin.H{"chapter": "chapter_01"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRunTests_UnknownChapter(t *testing.T) {
	s := newTestServer(t, &stubLoader{chapters: map[string]content.Chapter{}})

	w := s.do(t, http.MethodPost, "/api/tests/run", gin.H{"chapter": "chapter_42"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunTests_SingleFile(t *testing.T) {
	loader := &stubLoader{chapters: map[string]content.Chapter{
		"chapter_01": {
			ID: "chapter_01",
			Files: []content.File{
				{Name: "tests/test_dynamic_array.py", Content: "pass"},
			},
		},
	}}
	s := newTestServer(t, loader)
	s.rt.Stub(interptest.Script{
		Match: "sys.stdout.getvalue()",
		Value: lang.TestResultsStart + "\n" +
			`[{"name": "test_append", "status": "passed", "duration_ms": 1, "output": "", "error": null, "file": ""}]` +
			"\n" + lang.TestResultsEnd + "\n",
	})

	w := s.do(t, http.MethodPost, "/api/tests/run", gin.H{
		"chapter": "chapter_01",
		"file":    "tests/test_dynamic_array.py",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["run_id"])
	outcomes := body["outcomes"].([]interface{})
	require.Len(t, outcomes, 1)
	first := outcomes[0].(map[string]interface{})
	assert.Equal(t, "test_append", first["name"])
	assert.Equal(t, "tests/test_dynamic_array.py", first["file"])
}

func TestChapters_ListAndGet(t *testing.T) {
	loader := &stubLoader{chapters: map[string]content.Chapter{
		"chapter_01": {ID: "chapter_01", Files: []content.File{{Name: "a.py"}}},
	}}
	s := newTestServer(t, loader)

	w := s.do(t, http.MethodGet, "/api/chapters", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/chapters/chapter_01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chapter_01", decode(t, w)["id"])

	w = s.do(t, http.MethodGet, "/api/chapters/chapter_99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReset(t *testing.T) {
	s := newTestServer(t, nil)

	// Install, then reset back to idle.
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/install", nil).Code)
	require.True(t, s.engine.Installer().Installed())

	w := s.do(t, http.MethodPost, "/api/reset", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.engine.Installer().Installed())
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/execute", gin.H{"code": "x = 1"})

	w := s.do(t, http.MethodGet, "/api/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "executions")
	assert.Contains(t, body, "transforms")
	assert.Contains(t, body, "install")
}
