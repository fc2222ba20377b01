package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUReplacer_VictimReturnsFalse_WhenNothingUnpinned(t *testing.T) {
	poolSize := 32
	r := NewLRUReplacer(poolSize)
	for i := 0; i < poolSize; i++ {
		r.Unpin(i)
		r.Pin(i)
	}

	v, ok := r.Victim()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestLRUReplacer_VictimSkipsPinned(t *testing.T) {
	poolSize := 32
	r := NewLRUReplacer(poolSize)
	for i := 0; i < poolSize; i++ {
		r.Unpin(i)
	}
	for i := 0; i < poolSize-1; i++ {
		r.Pin(i)
	}

	v, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, poolSize-1, v)
}

func TestLRUReplacer_VictimIsOldestUnpinned(t *testing.T) {
	r := NewLRUReplacer(4)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)

	v, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLRUReplacer_PinAndUnpinAreIdempotent(t *testing.T) {
	r := NewLRUReplacer(4)
	r.Unpin(1)
	r.Unpin(1)
	assert.Equal(t, 1, r.Size())

	r.Pin(1)
	r.Pin(1)
	assert.Equal(t, 0, r.Size())
}

func TestLRUReplacer_UnpinRespectsCapacity(t *testing.T) {
	r := NewLRUReplacer(2)
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3) // over capacity, dropped

	assert.Equal(t, 2, r.Size())
}
