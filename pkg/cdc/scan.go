package cdc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/zhengshuai-xiao/cdcidx/internal"
)

var logger = internal.GetLogger("cdc")

// MaxBlockCount is the largest block count the index header can carry.
// 0xFFFFFFFF is reserved to mark an index that was never finalized.
const MaxBlockCount = math.MaxUint32 - 1

// Sink receives the entries of one scan in offset order, then the header.
// An index is complete only once Finalize has returned nil.
type Sink interface {
	Append(e BlockEntry) error
	Finalize(h Header) error
}

// Scan chunks r and streams every entry into sink. Cancelling ctx stops the
// scan between two entries and leaves the sink unfinalized.
func Scan(ctx context.Context, r io.Reader, sink Sink, p Params, digest DigestFunc) (Header, error) {
	chunker, err := NewChunker(r, p, digest)
	if err != nil {
		return Header{}, err
	}

	h := Header{TargetBlockSize: p.TargetBlockSize()}
	var count uint64
	for {
		if err := ctx.Err(); err != nil {
			return h, err
		}
		e, err := chunker.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return h, err
		}
		if count >= MaxBlockCount {
			return h, fmt.Errorf("%w: more than %d blocks", ErrTooManyBlocks, uint64(MaxBlockCount))
		}
		if err := sink.Append(e); err != nil {
			return h, fmt.Errorf("%w: entry %d at offset %d: %w", ErrIndexWrite, count, e.Offset, err)
		}
		count++
		logger.Tracef("block %d: off=%d len=%d weak=%d strong=%s", count-1, e.Offset, e.Length, e.Weak, e.Strong)
	}

	h.BlockCount = uint32(count)
	if err := sink.Finalize(h); err != nil {
		return h, fmt.Errorf("%w: finalize header: %w", ErrIndexWrite, err)
	}
	st := chunker.Stats()
	logger.Debugf("scan done: %d blocks, %d bytes, %d natural, %d forced boundaries", h.BlockCount, st.Bytes, st.Natural, st.Forced)
	return h, nil
}

// Collect is a Sink that keeps everything in memory.
type Collect struct {
	Entries []BlockEntry
	Header  Header
	Done    bool
}

func (c *Collect) Append(e BlockEntry) error {
	c.Entries = append(c.Entries, e)
	return nil
}

func (c *Collect) Finalize(h Header) error {
	c.Header = h
	c.Done = true
	return nil
}

type multiSink struct {
	sinks []Sink
}

// MultiSink duplicates every entry and the header to all sinks, in order.
// The first failing sink stops the fan-out.
func MultiSink(sinks ...Sink) Sink {
	all := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if ms, ok := s.(*multiSink); ok {
			all = append(all, ms.sinks...)
		} else if s != nil {
			all = append(all, s)
		}
	}
	return &multiSink{sinks: all}
}

func (m *multiSink) Append(e BlockEntry) error {
	for _, s := range m.sinks {
		if err := s.Append(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiSink) Finalize(h Header) error {
	for _, s := range m.sinks {
		if err := s.Finalize(h); err != nil {
			return err
		}
	}
	return nil
}
