package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// workdir is the scratch directory for a single pipeline run. Everything
// written into it is transient and removed when the run finishes,
// success and failure alike.
type workdir struct {
	path string
}

// newWorkdir creates a fresh scratch directory under base. An empty base
// falls back to the system temp directory.
func newWorkdir(base string) (*workdir, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("creating temp base directory: %w", err)
		}
	}
	path, err := os.MkdirTemp(base, "reeltab-run-*")
	if err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &workdir{path: path}, nil
}

// Save writes an uploaded file into the run directory under a sanitized
// name and returns its full path.
func (w *workdir) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(w.path, sanitizeFilename(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Cleanup removes the run directory and everything in it.
func (w *workdir) Cleanup() error {
	return os.RemoveAll(w.path)
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and
// truncating the often very long names phone cameras generate.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "upload"
	}

	return base + ext
}
