package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
)

// Index is a finalized chunk index loaded into memory.
type Index struct {
	Header  cdc.Header
	Entries []cdc.BlockEntry
}

// Size is the number of source bytes the index covers.
func (idx *Index) Size() uint64 {
	if len(idx.Entries) == 0 {
		return 0
	}
	return idx.Entries[len(idx.Entries)-1].End()
}

// Open reads the index stored at path.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	defer f.Close()

	idx, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return idx, nil
}

// Read decodes a whole index from r and checks that it is finalized,
// complete and contiguous.
func Read(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrCorruptIndex, err)
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if h.BlockCount == unfinalizedCount {
		return nil, ErrNotFinalized
	}

	idx := &Index{Header: h, Entries: make([]cdc.BlockEntry, 0, h.BlockCount)}
	var rec [EntrySize]byte
	for i := uint32(0); i < h.BlockCount; i++ {
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			return nil, fmt.Errorf("%w: entry %d of %d: %w", ErrCorruptIndex, i, h.BlockCount, err)
		}
		e, err := DecodeEntry(rec[:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Offset != idx.Size() {
			return nil, fmt.Errorf("%w: entry %d starts at %d, previous entry ends at %d", ErrCorruptIndex, i, e.Offset, idx.Size())
		}
		if e.Length == 0 {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrCorruptIndex, i)
		}
		idx.Entries = append(idx.Entries, e)
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("%w: reading past last entry: %w", ErrCorruptIndex, err)
		}
		return nil, fmt.Errorf("%w: trailing data after %d entries", ErrCorruptIndex, h.BlockCount)
	}
	return idx, nil
}

// Validate checks the chunk length bounds implied by p: every entry but the
// last lies within [MinChunk, MaxChunk], and the last is at most MaxChunk.
func (idx *Index) Validate(p cdc.Params) error {
	if idx.Header.TargetBlockSize != p.TargetBlockSize() {
		return fmt.Errorf("index target block size %d, params give %d", idx.Header.TargetBlockSize, p.TargetBlockSize())
	}
	for i, e := range idx.Entries {
		if int(e.Length) > p.MaxChunk {
			return fmt.Errorf("entry %d length %d exceeds max chunk %d", i, e.Length, p.MaxChunk)
		}
		if i < len(idx.Entries)-1 && int(e.Length) < p.MinChunk {
			return fmt.Errorf("entry %d length %d below min chunk %d", i, e.Length, p.MinChunk)
		}
	}
	return nil
}

// Verify re-reads the source the index was built from and checks every
// entry's strong digest and weak checksum, and that the source ends where
// the last entry ends.
func Verify(r io.Reader, idx *Index, digest cdc.DigestFunc) error {
	if digest == nil {
		digest = cdc.MD5Digest
	}
	var buf []byte
	for i, e := range idx.Entries {
		if cap(buf) < int(e.Length) {
			buf = make([]byte, e.Length)
		}
		buf = buf[:e.Length]
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%w: entry %d at offset %d: %w", cdc.ErrSourceRead, i, e.Offset, err)
		}
		if got := digest(buf); got != e.Strong {
			return fmt.Errorf("%w: entry %d at offset %d: strong digest %s, index has %s", ErrMismatch, i, e.Offset, got, e.Strong)
		}
		if got := cdc.Checksum(buf); got != e.Weak {
			return fmt.Errorf("%w: entry %d at offset %d: weak checksum %d, index has %d", ErrMismatch, i, e.Offset, got, e.Weak)
		}
	}

	var one [1]byte
	n, err := io.ReadFull(r, one[:])
	if n > 0 {
		return fmt.Errorf("%w: source is longer than the %d indexed bytes", ErrMismatch, idx.Size())
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: after last entry: %w", cdc.ErrSourceRead, err)
	}
	return nil
}
