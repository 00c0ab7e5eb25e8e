package lang

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPython_ProfileShape(t *testing.T) {
	p := Python("mastering_performant_code")

	assert.Equal(t, "python", p.Name)
	assert.Equal(t, "__file__", p.FileGuardName)
	assert.Contains(t, p.FileGuard, "__file__")
	assert.Contains(t, p.RedirectPreamble, "io.StringIO()")
	assert.Contains(t, p.RestoreStreams, "__companion_stdout")
	assert.NotEmpty(t, p.MemorySample)
	assert.NotEmpty(t, p.ResetState)

	// Smoke checks exercise the package root and a representative module.
	require.NotEmpty(t, p.SmokeChecks)
	assert.Equal(t, "import mastering_performant_code", p.SmokeChecks[0])
	joined := strings.Join(p.SmokeChecks, "\n")
	assert.Contains(t, joined, "chapter_01.dynamic_array")
	assert.Contains(t, joined, "DynamicArray")
}

func TestPythonHarness(t *testing.T) {
	p := Python("mastering_performant_code")

	harness := p.Harness("tests/test_dynamic_array.py", "class TestArray: pass")

	// The harness embeds the source and file name, and prints the framed
	// payload the collector parses.
	assert.Contains(t, harness, `"class TestArray: pass"`)
	assert.Contains(t, harness, `"tests/test_dynamic_array.py"`)
	assert.Contains(t, harness, TestResultsStart)
	assert.Contains(t, harness, TestResultsEnd)
	assert.Contains(t, harness, "unittest")

	// Sources with double quotes survive the embedding as escaped text.
	tricky := p.Harness("t.py", `s = "quoted"`)
	assert.Contains(t, tricky, `s = \"quoted\"`)
}

func TestJavaScript_ProfileShape(t *testing.T) {
	p := JavaScript()

	assert.Equal(t, "javascript", p.Name)
	assert.Equal(t, "__filename", p.FileGuardName)
	assert.Contains(t, p.RedirectPreamble, "console.log")
	assert.Empty(t, p.MemorySample)
	assert.NotEmpty(t, p.SmokeChecks)

	harness := p.Harness("test_widget.js", "__register('test_ok', function() {});")
	assert.Contains(t, harness, TestResultsStart)
	assert.Contains(t, harness, "__register")
}
