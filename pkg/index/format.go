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
package index

import (
	"errors"
	"fmt"

	"github.com/zhengshuai-xiao/cdcidx/internal"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
)

// The chunk index file format is:
// [header: target_block_size u32 | block_count u32]
// [entry: offset u64 | length u32 | strong [16]+1 | weak text [10]+1] ...
// All integers are little-endian. The reserved bytes are always zero.
const (
	HeaderSize = 4 + 4
	EntrySize  = 8 + 4 + (cdc.DigestSize + 1) + (cdc.WeakTextSize + 1)

	offLength = 8
	offStrong = offLength + 4
	offWeak   = offStrong + cdc.DigestSize + 1

	// unfinalizedCount marks a header that was never rewritten by Finalize.
	unfinalizedCount = ^uint32(0)
)

var (
	ErrShortWrite   = internal.ErrShortWrite
	ErrNotFinalized = errors.New("index not finalized")
	ErrCorruptIndex = errors.New("corrupt index")
	ErrOutOfOrder   = errors.New("entry out of order")
	ErrFinalized    = errors.New("index already finalized")
	ErrMismatch     = errors.New("source does not match index")
)

func EncodeHeader(h cdc.Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	target := internal.UInt32ToBytesLittleEndian(h.TargetBlockSize)
	count := internal.UInt32ToBytesLittleEndian(h.BlockCount)
	copy(buf[0:4], target[:])
	copy(buf[4:8], count[:])
	return buf
}

func DecodeHeader(buf []byte) (cdc.Header, error) {
	if len(buf) != HeaderSize {
		return cdc.Header{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrCorruptIndex, len(buf), HeaderSize)
	}
	return cdc.Header{
		TargetBlockSize: internal.BytesToUInt32LittleEndian([4]byte(buf[0:4])),
		BlockCount:      internal.BytesToUInt32LittleEndian([4]byte(buf[4:8])),
	}, nil
}

func EncodeEntry(e cdc.BlockEntry) [EntrySize]byte {
	var buf [EntrySize]byte
	off := internal.UInt64ToBytesLittleEndian(e.Offset)
	length := internal.UInt32ToBytesLittleEndian(e.Length)
	weak := cdc.FormatWeak(e.Weak)
	copy(buf[0:offLength], off[:])
	copy(buf[offLength:offStrong], length[:])
	copy(buf[offStrong:offStrong+cdc.DigestSize], e.Strong[:])
	copy(buf[offWeak:offWeak+cdc.WeakTextSize], weak[:])
	return buf
}

func DecodeEntry(buf []byte) (cdc.BlockEntry, error) {
	if len(buf) != EntrySize {
		return cdc.BlockEntry{}, fmt.Errorf("%w: entry is %d bytes, want %d", ErrCorruptIndex, len(buf), EntrySize)
	}
	if !internal.IsZero(buf[offStrong+cdc.DigestSize:offWeak]) || !internal.IsZero(buf[offWeak+cdc.WeakTextSize:]) {
		return cdc.BlockEntry{}, fmt.Errorf("%w: reserved bytes are not zero", ErrCorruptIndex)
	}
	weak, err := cdc.ParseWeak(buf[offWeak : offWeak+cdc.WeakTextSize])
	if err != nil {
		return cdc.BlockEntry{}, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	e := cdc.BlockEntry{
		Offset: internal.BytesToUInt64LittleEndian([8]byte(buf[0:offLength])),
		Length: internal.BytesToUInt32LittleEndian([4]byte(buf[offLength:offStrong])),
		Weak:   weak,
	}
	copy(e.Strong[:], buf[offStrong:offStrong+cdc.DigestSize])
	return e, nil
}
