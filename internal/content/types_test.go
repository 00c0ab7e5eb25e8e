package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChapter_TestFiles(t *testing.T) {
	chapter := Chapter{
		ID: "chapter_01",
		Files: []File{
			{Name: "dynamic_array.py"},
			{Name: "tests/test_dynamic_array.py"},
			{Name: "test_inline.py"},
			{Name: "tests/conftest.py"},
			{Name: "tests/test_widget.js"},
			{Name: "docs/test_plan.md"},
		},
	}

	files := chapter.TestFiles()

	require.Len(t, files, 3)
	assert.Equal(t, "tests/test_dynamic_array.py", files[0].Name)
	assert.Equal(t, "test_inline.py", files[1].Name)
	assert.Equal(t, "tests/test_widget.js", files[2].Name)
}

func TestChapter_File(t *testing.T) {
	chapter := Chapter{Files: []File{{Name: "a.py", Content: "x"}}}

	f, ok := chapter.File("a.py")
	require.True(t, ok)
	assert.Equal(t, "x", f.Content)

	_, ok = chapter.File("missing.py")
	assert.False(t, ok)
}
