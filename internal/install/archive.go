package install

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// VerifyArchive performs the structural check on a fetched archive: the
// package's files must actually be present under its directory prefix.
// Wheels and plain zips are read as zip; sdists as gzipped tar. Returns the
// number of package files found.
func VerifyArchive(name string, data []byte, packageName string) (int, error) {
	var entries []string
	var err error

	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		entries, err = tarGzEntries(data)
	default:
		entries, err = zipEntries(data)
	}
	if err != nil {
		return 0, err
	}

	prefix := packageName + "/"
	count := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry, prefix) {
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("install: archive contains no %s files", packageName)
	}
	return count, nil
}

func zipEntries(data []byte) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("install: open zip archive: %w", err)
	}
	entries := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		entries = append(entries, f.Name)
	}
	return entries, nil
}

func tarGzEntries(data []byte) ([]string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("install: open gzip archive: %w", err)
	}
	defer gz.Close()

	var entries []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("install: read tar archive: %w", err)
		}
		// Sdist entries carry a versioned top-level directory.
		name := hdr.Name
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		entries = append(entries, name)
	}
	return entries, nil
}
