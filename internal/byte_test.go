package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUInt64Conversion(t *testing.T) {
	original := uint64(0x0102030405060708)
	bytes := UInt64ToBytesLittleEndian(original)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, bytes[:])

	converted := BytesToUInt64LittleEndian(bytes)
	assert.Equal(t, original, converted)
}

func TestUInt32Conversion(t *testing.T) {
	original := uint32(0x0a0b0c0d)
	bytes := UInt32ToBytesLittleEndian(original)
	assert.Equal(t, []byte{0x0d, 0x0c, 0x0b, 0x0a}, bytes[:])
	assert.Equal(t, original, BytesToUInt32LittleEndian(bytes))
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero([]byte{0, 0, 0}))
	assert.False(t, IsZero([]byte{0, 1, 0}))
}
