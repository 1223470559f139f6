package cdc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveChecksum folds one byte at a time.
func naiveChecksum(buf []byte) uint32 {
	var s1, s2 uint32
	for _, b := range buf {
		s1 += uint32(b) + CharOffset
		s2 += s1
	}
	return (s1 & 0xffff) | (s2 << 16)
}

func TestChecksum_KnownValues(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(nil))
	assert.Equal(t, uint32(8|8<<16), Checksum([]byte{0}))
	// biased bytes 9..13: s1 = 55, s2 = 5*9 + 4*10 + 3*11 + 2*12 + 13 = 155
	assert.Equal(t, uint32(55|155<<16), Checksum([]byte{1, 2, 3, 4, 5}))
}

func TestChecksum_MatchesBytewiseFold(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 300; n++ {
		buf := make([]byte, n)
		rng.Read(buf)
		require.Equal(t, naiveChecksum(buf), Checksum(buf), "length %d", n)
	}

	high := make([]byte, 4099)
	for i := range high {
		high[i] = 0xff
	}
	assert.Equal(t, naiveChecksum(high), Checksum(high))
}

func TestRoll_EqualsRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, window := range []int{1, 3, 4, 5, 48, 64, 1000} {
		for trial := 0; trial < 5; trial++ {
			buf := make([]byte, window+rng.Intn(2000))
			rng.Read(buf)

			csum := Checksum(buf[:window])
			for i := window; i < len(buf); i++ {
				csum = Roll(csum, window, buf[i-window], buf[i])
				want := Checksum(buf[i-window+1 : i+1])
				if !assert.Equal(t, want, csum, "window %d position %d", window, i) {
					return
				}
			}
		}
	}
}

func TestRoll_ExtremeBytes(t *testing.T) {
	buf := make([]byte, 512)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = 0xff
		}
	}
	const window = 64
	csum := Checksum(buf[:window])
	for i := window; i < len(buf); i++ {
		csum = Roll(csum, window, buf[i-window], buf[i])
		require.Equal(t, Checksum(buf[i-window+1:i+1]), csum)
	}
}

func TestWeakText(t *testing.T) {
	testCases := []struct {
		name string
		v    uint32
		text string
	}{
		{"Zero", 0, "0000000000"},
		{"Small", 42, "0000000042"},
		{"Max", math.MaxUint32, "4294967295"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text := FormatWeak(tc.v)
			assert.Equal(t, tc.text, string(text[:]))
			v, err := ParseWeak(text[:])
			assert.NoError(t, err)
			assert.Equal(t, tc.v, v)
		})
	}
}

func TestParseWeak_Invalid(t *testing.T) {
	_, err := ParseWeak([]byte("123"))
	assert.Error(t, err)
	_, err = ParseWeak([]byte("12345abcde"))
	assert.Error(t, err)
	_, err = ParseWeak([]byte("9999999999"))
	assert.Error(t, err)
	_, err = ParseWeak([]byte("+123456789"))
	assert.Error(t, err)
}
