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
	"strconv"
)

// CharOffset is added to every byte before it is folded into the checksum.
const CharOffset = 8

// WeakTextSize is the width of the textual weak checksum encoding.
const WeakTextSize = 10

// Checksum computes the 32-bit weak checksum of buf, an Adler-32 style sum
// that can be updated from either end. The low 16 bits hold s1, the high
// 16 bits hold s2.
func Checksum(buf []byte) uint32 {
	var s1, s2 uint32
	n := len(buf)
	i := 0
	for ; i+4 < n; i += 4 {
		b0, b1, b2, b3 := uint32(buf[i]), uint32(buf[i+1]), uint32(buf[i+2]), uint32(buf[i+3])
		s2 += 4*(s1+b0) + 3*b1 + 2*b2 + b3 + 10*CharOffset
		s1 += b0 + b1 + b2 + b3 + 4*CharOffset
	}
	for ; i < n; i++ {
		s1 += uint32(buf[i]) + CharOffset
		s2 += s1
	}
	return (s1 & 0xffff) | (s2 << 16)
}

// Roll turns the checksum of window X0..Xn-1 into the checksum of X1..Xn,
// where out is X0, in is Xn and n is the window length.
//
// The bias cancels out of s1 but not out of s2: every byte that leaves the
// window takes n*(out+CharOffset) with it.
func Roll(csum uint32, n int, out, in byte) uint32 {
	s1 := csum & 0xffff
	s2 := csum >> 16
	s1 = s1 - uint32(out) + uint32(in)
	s2 = s2 - uint32(n)*(uint32(out)+CharOffset) + s1
	return (s1 & 0xffff) | (s2 << 16)
}

// FormatWeak renders v as ten zero-padded decimal digits.
func FormatWeak(v uint32) [WeakTextSize]byte {
	var out [WeakTextSize]byte
	s := fmt.Sprintf("%0*d", WeakTextSize, v)
	copy(out[:], s)
	return out
}

// ParseWeak is the inverse of FormatWeak.
func ParseWeak(b []byte) (uint32, error) {
	if len(b) != WeakTextSize {
		return 0, fmt.Errorf("weak checksum text must be %d bytes, got %d", WeakTextSize, len(b))
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("weak checksum text %q is not decimal", b)
		}
	}
	v, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("weak checksum text %q: %w", b, err)
	}
	return uint32(v), nil
}
