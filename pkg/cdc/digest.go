package cdc

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
)

// DigestSize is the size of a strong chunk digest in bytes.
const DigestSize = 16

// Digest is a 128-bit strong content hash.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestFunc computes the strong digest of an exact byte range.
type DigestFunc func(buf []byte) Digest

const DefaultDigest = "md5"

var digests = map[string]DigestFunc{
	"md5":    MD5Digest,
	"xxh3":   XXH3Digest,
	"blake3": Blake3Digest,
}

// LookupDigest returns the digest function registered under name.
func LookupDigest(name string) (DigestFunc, error) {
	fn, ok := digests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownDigest, name, DigestNames())
	}
	return fn, nil
}

// DigestNames lists the registered digest names in sorted order.
func DigestNames() []string {
	names := make([]string, 0, len(digests))
	for name := range digests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func MD5Digest(buf []byte) Digest {
	return Digest(md5.Sum(buf))
}

// XXH3Digest is the 128-bit XXH3 hash, high word first.
func XXH3Digest(buf []byte) Digest {
	h := xxh3.Hash128(buf)
	var d Digest
	binary.BigEndian.PutUint64(d[:8], h.Hi)
	binary.BigEndian.PutUint64(d[8:], h.Lo)
	return d
}

// Blake3Digest truncates the BLAKE3 output to 128 bits.
func Blake3Digest(buf []byte) Digest {
	h := blake3.New()
	h.Write(buf)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
