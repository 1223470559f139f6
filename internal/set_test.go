package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringSet(t *testing.T) {
	s := NewSet[string]()

	assert.True(t, s.Add("apple"))
	assert.True(t, s.Add("banana"))
	assert.False(t, s.Add("apple"))
	assert.Equal(t, 2, s.Len())
}

func TestArrayKeySet(t *testing.T) {
	s := NewSet[[4]byte]()
	assert.True(t, s.Add([4]byte{1, 2, 3, 4}))
	assert.False(t, s.Add([4]byte{1, 2, 3, 4}))
	assert.True(t, s.Add([4]byte{4, 3, 2, 1}))

	assert.Equal(t, 2, s.Len())
}
