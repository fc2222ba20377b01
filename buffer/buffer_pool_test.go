package buffer

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minisql/disk"
)

func newTestPool(t *testing.T, poolSize int) *BufferPoolManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), uuid.NewString()+".db")
	dm, err := disk.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return New(dm, poolSize)
}

func TestBufferPool_RoundTripsRandomPages(t *testing.T) {
	b := newTestPool(t, 10)

	numPages := 50
	want := make([][]byte, numPages)
	ids := make([]int, numPages)

	for i := 0; i < numPages; i++ {
		want[i] = make([]byte, disk.PageSize)
		rand.Read(want[i])

		p, err := b.NewPage()
		require.NoError(t, err)
		ids[i] = p.GetPageID()
		copy(p.Data, want[i])
		require.True(t, b.UnpinPage(ids[i], true))
	}

	for i, id := range ids {
		p, err := b.FetchPage(id)
		require.NoError(t, err)
		assert.Equal(t, want[i], p.Data)
		require.True(t, b.UnpinPage(id, false))
	}

	assert.True(t, b.CheckAllUnpinned())
}

// TestBufferPool_NewPageFailsWhenExhausted covers pool exhaustion:
// pool size 3, A/B/C pinned, a new page D fails, unpinning A frees capacity
// for D, and A fetched back after eviction still holds its content.
func TestBufferPool_NewPageFailsWhenExhausted(t *testing.T) {
	b := newTestPool(t, 3)

	a, err := b.NewPage()
	require.NoError(t, err)
	bb, err := b.NewPage()
	require.NoError(t, err)
	c, err := b.NewPage()
	require.NoError(t, err)

	aID := a.GetPageID()
	copy(a.Data, []byte("A content"))
	require.True(t, b.UnpinPage(a.GetPageID(), true))
	// re-fetch to keep it pinned for the exhaustion check below
	a, err = b.FetchPage(a.GetPageID())
	require.NoError(t, err)

	d, err := b.NewPage()
	require.NoError(t, err)
	require.Nil(t, d)

	require.True(t, b.UnpinPage(a.GetPageID(), false))
	d, err = b.NewPage()
	require.NoError(t, err)
	require.NotNil(t, d)
	require.True(t, b.UnpinPage(d.GetPageID(), true))

	require.True(t, b.UnpinPage(bb.GetPageID(), false))
	// a's frame now holds D, so look A up by the id recorded before eviction
	fetched, err := b.FetchPage(aID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "A content", string(fetched.Data[:9]))
	require.True(t, b.UnpinPage(aID, false))
	require.True(t, b.UnpinPage(c.GetPageID(), false))
}

func TestBufferPool_DeletePageFailsWhilePinned(t *testing.T) {
	b := newTestPool(t, 2)

	p, err := b.NewPage()
	require.NoError(t, err)

	ok, err := b.DeletePage(p.GetPageID())
	require.NoError(t, err)
	assert.False(t, ok)

	require.True(t, b.UnpinPage(p.GetPageID(), false))
	ok, err = b.DeletePage(p.GetPageID())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBufferPool_UnpinUnknownPageFails(t *testing.T) {
	b := newTestPool(t, 2)
	assert.False(t, b.UnpinPage(999, false))
}

func TestBufferPool_DeleteUnknownPageIsNoop(t *testing.T) {
	b := newTestPool(t, 2)
	ok, err := b.DeletePage(999)
	require.NoError(t, err)
	assert.True(t, ok)
}
