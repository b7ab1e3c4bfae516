package eval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one manifest line: an audio file and its reference transcript.
type Entry struct {
	Path      string
	Reference string
}

// ReadManifest parses "path<TAB>reference" lines. Blank lines and lines
// starting with '#' are skipped.
func ReadManifest(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected path<TAB>reference", lineNum)
		}
		entries = append(entries, Entry{Path: parts[0], Reference: strings.TrimSpace(parts[1])})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadManifestFile reads a manifest and resolves relative audio paths
// against the manifest's directory.
func ReadManifestFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i, e := range entries {
		if !filepath.IsAbs(e.Path) {
			entries[i].Path = filepath.Join(dir, e.Path)
		}
	}
	return entries, nil
}
