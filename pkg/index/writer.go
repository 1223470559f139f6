package index

import (
	"fmt"
	"io"

	"github.com/zhengshuai-xiao/cdcidx/internal"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
)

var logger = internal.GetLogger("index")

// Writer persists a chunk index to a seekable destination. It writes a
// placeholder header up front, appends one fixed-size record per entry and
// rewrites the header on Finalize.
type Writer struct {
	w      io.WriteSeeker
	closer io.Closer
	name   string

	count     uint64
	next      uint64
	finalized bool
}

// Create opens path for writing, creating parent directories as needed.
func Create(path string) (*Writer, error) {
	f, err := internal.CreateFile(path)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter starts an index at the current position of ws, which is
// expected to be the start of an empty destination.
func NewWriter(ws io.WriteSeeker) (*Writer, error) {
	return newWriter(ws, "")
}

func newWriter(ws io.WriteSeeker, name string) (*Writer, error) {
	hdr := EncodeHeader(cdc.Header{BlockCount: unfinalizedCount})
	if err := internal.WriteRecord(ws, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to write placeholder header: %w", err)
	}
	return &Writer{w: ws, name: name}, nil
}

// Append writes one entry. Entries must arrive in offset order with no gap.
func (w *Writer) Append(e cdc.BlockEntry) error {
	if w.finalized {
		return ErrFinalized
	}
	if e.Offset != w.next {
		return fmt.Errorf("%w: entry at offset %d, expected %d", ErrOutOfOrder, e.Offset, w.next)
	}
	rec := EncodeEntry(e)
	if err := internal.WriteRecord(w.w, rec[:]); err != nil {
		return err
	}
	w.count++
	w.next = e.End()
	return nil
}

// Finalize rewrites the header. h.BlockCount must equal the number of
// appended entries.
func (w *Writer) Finalize(h cdc.Header) error {
	if w.finalized {
		return ErrFinalized
	}
	if uint64(h.BlockCount) != w.count {
		return fmt.Errorf("header block count %d does not match %d appended entries", h.BlockCount, w.count)
	}
	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to header: %w", err)
	}
	hdr := EncodeHeader(h)
	if err := internal.WriteRecord(w.w, hdr[:]); err != nil {
		return fmt.Errorf("failed to rewrite header: %w", err)
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek past entries: %w", err)
	}
	w.finalized = true
	if w.name != "" {
		logger.Debugf("finalized index %s: %d blocks, target block size %d", w.name, h.BlockCount, h.TargetBlockSize)
	}
	return nil
}

// Finalized reports whether Finalize has succeeded.
func (w *Writer) Finalized() bool {
	return w.finalized
}

// Close releases the destination if the writer opened it.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}
