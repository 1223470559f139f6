package internal

import "encoding/binary"

func BytesToUInt64LittleEndian(b [8]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:])
}

func UInt64ToBytesLittleEndian(i uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return b
}

func BytesToUInt32LittleEndian(b [4]byte) uint32 {
	return binary.LittleEndian.Uint32(b[:])
}

func UInt32ToBytesLittleEndian(i uint32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], i)
	return b
}

// IsZero reports whether every byte of b is zero.
func IsZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
