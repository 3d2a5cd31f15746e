package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
)

// filenameLayout renders an entry creation timestamp as
// dd-MM-yyyy-HH-mm-ss.
const filenameLayout = "02-01-2006-15-04-05"

// ExportError reports a file-system failure during CSV export. The
// export attempt is simply aborted; entry state is never touched.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed while %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// DirectoryCache remembers the export location granted on a previous
// export so later exports reuse it without asking again.
type DirectoryCache interface {
	Directory(ctx context.Context) (string, error)
	SetDirectory(ctx context.Context, dir string) error
}

// Writer renders entries to CSV files on disk.
type Writer struct {
	cache      DirectoryCache
	defaultDir string
}

// NewWriter creates a writer. The cache may be nil, in which case
// every export goes to the default directory.
func NewWriter(cache DirectoryCache, defaultDir string) *Writer {
	return &Writer{cache: cache, defaultDir: defaultDir}
}

// Filename derives the export filename from the entry's creation
// timestamp.
func Filename(e *entry.FormEntry) string {
	return e.CreatedAt.Format(filenameLayout) + ".csv"
}

// Write renders the entry and writes it to the cached export directory
// (falling back to the default), creating the directory as needed.
// Returns the written file path. Failures come back as *ExportError.
func (w *Writer) Write(ctx context.Context, e *entry.FormEntry) (string, error) {
	text, err := Render(e)
	if err != nil {
		return "", &ExportError{Op: "rendering CSV", Err: err}
	}

	dir := w.defaultDir
	if w.cache != nil {
		if cached, err := w.cache.Directory(ctx); err == nil && cached != "" {
			dir = cached
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &ExportError{Op: "creating export directory", Err: err}
	}

	path := filepath.Join(dir, Filename(e))
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", &ExportError{Op: "writing CSV file", Err: err}
	}

	if w.cache != nil {
		// Best effort: a failed cache write must not fail the export.
		_ = w.cache.SetDirectory(ctx, dir)
	}
	return path, nil
}
