package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// Dir loads chapters from a generated-content tree on disk:
// <root>/chapter_NN/<files>. Listings are walked once and cached.
type Dir struct {
	root string

	mu       sync.Mutex
	chapters map[string]Chapter
}

// NewDir creates a directory-backed loader.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Chapters lists chapter IDs in name order.
func (d *Dir) Chapters() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", d.root, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "chapter_") {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Chapter walks one chapter directory and returns its file listing.
func (d *Dir) Chapter(id string) (Chapter, error) {
	d.mu.Lock()
	if cached, ok := d.chapters[id]; ok {
		d.mu.Unlock()
		return cached, nil
	}
	d.mu.Unlock()

	chapterRoot := filepath.Join(d.root, id)
	if _, err := os.Stat(chapterRoot); err != nil {
		return Chapter{}, fmt.Errorf("content: chapter %s: %w", id, err)
	}

	var (
		filesMu sync.Mutex
		files   []File
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, chapterRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(chapterRoot, path)
		if relErr != nil {
			return relErr
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		file := File{
			Name:      filepath.ToSlash(rel),
			Content:   string(data),
			Category:  categorize(filepath.ToSlash(rel), data),
			Docstring: extractDocstring(string(data)),
		}
		filesMu.Lock()
		files = append(files, file)
		filesMu.Unlock()
		return nil
	})
	if err != nil {
		return Chapter{}, fmt.Errorf("content: walk chapter %s: %w", id, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	chapter := Chapter{ID: id, Files: files}

	d.mu.Lock()
	if d.chapters == nil {
		d.chapters = make(map[string]Chapter)
	}
	d.chapters[id] = chapter
	d.mu.Unlock()

	return chapter, nil
}

// categorize infers a file's category from naming convention, falling back
// to content-type detection for unknown extensions.
func categorize(name string, data []byte) Category {
	base := filepath.Base(name)
	switch {
	case strings.HasPrefix(base, "test_") || strings.HasPrefix(name, "tests/"):
		return CategoryTest
	case strings.HasPrefix(base, "demo"):
		return CategoryDemo
	case strings.Contains(base, "benchmark"):
		return CategoryBenchmark
	case strings.Contains(base, "analyzer") || strings.Contains(base, "profiler"):
		return CategoryAnalysis
	case strings.HasSuffix(base, ".py") || strings.HasSuffix(base, ".js"):
		return CategoryImplementation
	}

	mtype := mimetype.Detect(data)
	if strings.HasPrefix(mtype.String(), "text/") {
		return CategoryImplementation
	}
	return CategoryOther
}

// extractDocstring pulls the module-level docstring from the head of a
// Python source file.
func extractDocstring(source string) string {
	trimmed := strings.TrimLeft(source, " \t\r\n")
	for _, quote := range []string{`"""`, "'''"} {
		if !strings.HasPrefix(trimmed, quote) {
			continue
		}
		rest := trimmed[len(quote):]
		if end := strings.Index(rest, quote); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return ""
}
