// Package content loads chapter/file listings for the companion material.
//
// The execution pipeline is agnostic to where content comes from; this
// package provides a filesystem loader for a generated-content tree and an
// HTTP loader for a content server, both producing the same Chapter shape.
package content

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Category classifies a chapter file.
type Category string

const (
	CategoryImplementation Category = "implementation"
	CategoryDemo           Category = "demo"
	CategoryTest           Category = "test"
	CategoryBenchmark      Category = "benchmark"
	CategoryAnalysis       Category = "analysis"
	CategoryOther          Category = "other"
)

// File is one source file inside a chapter.
type File struct {
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	Category  Category `json:"category"`
	Docstring string   `json:"docstring,omitempty"`
}

// Chapter is one chapter's file listing.
type Chapter struct {
	ID    string `json:"id"`
	Files []File `json:"files"`
}

// testPatterns identify test files within a chapter, relative to the
// chapter root.
var testPatterns = []string{
	"tests/test_*.py",
	"test_*.py",
	"tests/test_*.js",
	"test_*.js",
}

// TestFiles returns the chapter's test files in listing order.
func (c Chapter) TestFiles() []File {
	var out []File
	for _, f := range c.Files {
		for _, pattern := range testPatterns {
			if ok, err := doublestar.Match(pattern, f.Name); err == nil && ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// File returns the named file, if present.
func (c Chapter) File(name string) (File, bool) {
	for _, f := range c.Files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Loader supplies chapter listings.
type Loader interface {
	Chapters() ([]string, error)
	Chapter(id string) (Chapter, error)
}
