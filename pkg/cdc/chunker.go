// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package cdc

import (
	"fmt"
	"io"
)

const maxConsecutiveEmptyReads = 100

// BlockEntry describes one chunk of the source stream.
type BlockEntry struct {
	Offset uint64
	Length uint32
	Strong Digest
	Weak   uint32
}

// End returns the offset one past the last byte of the chunk.
func (e BlockEntry) End() uint64 {
	return e.Offset + uint64(e.Length)
}

// Header summarises a finished scan. BlockCount is only known once the
// whole source has been consumed.
type Header struct {
	TargetBlockSize uint32
	BlockCount      uint32
}

// Stats counts how the boundaries of a scan were produced.
type Stats struct {
	Natural int
	Forced  int
	Bytes   uint64
}

type chunkerState int

const (
	// block shorter than MinChunk, no checksum evaluation
	stateFilling chunkerState = iota
	// window checksum evaluated at every byte
	stateScanning
	// source exhausted or failed
	stateTerminal
)

// Chunker splits a byte stream into content-defined chunks. It owns three
// buffers: the read buffer filled from the source, the block accumulating
// the current chunk, and the window, which is always the last WindowSize
// bytes of the block. A Chunker must not be used concurrently.
type Chunker struct {
	r      io.Reader
	p      Params
	digest DigestFunc

	rbuf  []byte
	rpos  int
	rend  int
	eof   bool
	block []byte

	csum   uint32
	offset uint64
	state  chunkerState
	stats  Stats
}

// NewChunker returns a chunker reading from r. A nil digest selects MD5.
func NewChunker(r io.Reader, p Params, digest DigestFunc) (*Chunker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if digest == nil {
		digest = MD5Digest
	}
	return &Chunker{
		r:      r,
		p:      p,
		digest: digest,
		rbuf:   make([]byte, p.BufSize),
		block:  make([]byte, 0, p.MaxChunk),
		state:  stateFilling,
	}, nil
}

// Next returns the next chunk in offset order, or io.EOF once the source
// is exhausted. After a source error the chunker stays terminal and keeps
// returning io.EOF.
func (c *Chunker) Next() (BlockEntry, error) {
	for {
		if c.state == stateTerminal {
			return BlockEntry{}, io.EOF
		}

		if c.rpos == c.rend {
			if c.eof {
				c.state = stateTerminal
				if len(c.block) > 0 {
					return c.emit(), nil
				}
				return BlockEntry{}, io.EOF
			}
			if err := c.fill(); err != nil {
				c.state = stateTerminal
				c.block = c.block[:0]
				return BlockEntry{}, err
			}
			continue
		}

		switch c.state {
		case stateFilling:
			n := c.p.MinChunk - len(c.block)
			if avail := c.rend - c.rpos; avail < n {
				n = avail
			}
			c.block = append(c.block, c.rbuf[c.rpos:c.rpos+n]...)
			c.rpos += n
			if len(c.block) < c.p.MinChunk {
				continue
			}
			// first window of this chunk, computed from scratch
			c.csum = Checksum(c.block[len(c.block)-c.p.WindowSize:])
			c.state = stateScanning
			if c.atBoundary() {
				return c.emit(), nil
			}

		case stateScanning:
			for c.rpos < c.rend {
				in := c.rbuf[c.rpos]
				c.rpos++
				out := c.block[len(c.block)-c.p.WindowSize]
				c.block = append(c.block, in)
				c.csum = Roll(c.csum, c.p.WindowSize, out, in)
				if c.atBoundary() {
					return c.emit(), nil
				}
			}
		}
	}
}

// Stats returns the boundary counters accumulated so far.
func (c *Chunker) Stats() Stats {
	return c.stats
}

// atBoundary reports whether the block ends here. It is only called once
// the block holds at least MinChunk bytes.
func (c *Chunker) atBoundary() bool {
	if c.csum%c.p.AvgDivisor == c.p.BoundaryRemainder {
		c.stats.Natural++
		return true
	}
	if len(c.block) >= c.p.MaxChunk {
		c.stats.Forced++
		return true
	}
	return false
}

func (c *Chunker) emit() BlockEntry {
	e := BlockEntry{
		Offset: c.offset,
		Length: uint32(len(c.block)),
		Strong: c.digest(c.block),
		Weak:   Checksum(c.block),
	}
	c.offset += uint64(len(c.block))
	c.stats.Bytes += uint64(len(c.block))
	c.block = c.block[:0]
	if c.state != stateTerminal {
		c.state = stateFilling
	}
	return e
}

func (c *Chunker) fill() error {
	for i := 0; i < maxConsecutiveEmptyReads; i++ {
		n, err := c.r.Read(c.rbuf)
		if n < 0 || n > len(c.rbuf) {
			return fmt.Errorf("%w: reader returned invalid count %d", ErrSourceRead, n)
		}
		c.rpos, c.rend = 0, n
		if err == io.EOF {
			c.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w at offset %d: %w", ErrSourceRead, c.offset+uint64(len(c.block)), err)
		}
		if n > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %w", ErrSourceRead, io.ErrNoProgress)
}
