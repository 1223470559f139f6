package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteRecord writes rec with a single Write call. A record is either
// written whole or reported as failed; a short count is ErrShortWrite.
func WriteRecord(w io.Writer, rec []byte) error {
	n, err := w.Write(rec)
	if err != nil {
		return fmt.Errorf("failed to write %d-byte record: %w", len(rec), err)
	}
	if n != len(rec) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(rec))
	}
	return nil
}

// CreateFile creates path and its parent directories, truncating any
// existing file.
func CreateFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
