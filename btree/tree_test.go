package btree

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minisql/buffer"
	"minisql/disk"
)

func newTestTree(t *testing.T, poolSize int) *Tree {
	path := filepath.Join(t.TempDir(), uuid.NewString()+".db")
	dm, err := disk.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.New(dm, poolSize)
	roots, err := InitIndexRoots(pool)
	require.NoError(t, err)

	return NewTree(pool, Int64KeyManager{}, roots, 1)
}

func collectAscending(t *testing.T, tree *Tree) []int64 {
	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for !it.End() {
		got = append(got, DecodeInt64Key(it.Key()))
		it.Next()
	}
	return got
}

func TestTree_InsertScatteredKeysThenLookupAll(t *testing.T) {
	tree := newTestTree(t, 16)
	keys := []int64{5, 2, 8, 1, 9, 3, 7, 4, 6}

	for _, k := range keys {
		ok, err := tree.Insert(EncodeInt64Key(k), RowId{PageID: int32(k * 10)})
		require.NoError(t, err)
		assert.True(t, ok)
	}

	for _, k := range keys {
		val, found, err := tree.GetValue(EncodeInt64Key(k))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int32(k*10), val.PageID)
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9}, collectAscending(t, tree))
}

func TestTree_InsertDuplicateKeyFails(t *testing.T) {
	tree := newTestTree(t, 16)
	ok, err := tree.Insert(EncodeInt64Key(1), RowId{PageID: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tree.Insert(EncodeInt64Key(1), RowId{PageID: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	val, found, err := tree.GetValue(EncodeInt64Key(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int32(1), val.PageID)
}

func TestTree_GetValueOnEmptyTreeMisses(t *testing.T) {
	tree := newTestTree(t, 16)
	_, found, err := tree.GetValue(EncodeInt64Key(42))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTree_RemoveSequenceMaintainsInvariants(t *testing.T) {
	tree := newTestTree(t, 32)
	keys := []int64{5, 2, 8, 1, 9, 3, 7, 4, 6}
	for _, k := range keys {
		_, err := tree.Insert(EncodeInt64Key(k), RowId{PageID: int32(k)})
		require.NoError(t, err)
	}

	toRemove := []int64{2, 8, 5, 9}
	for _, k := range toRemove {
		require.NoError(t, tree.Remove(EncodeInt64Key(k)))
	}

	removed := map[int64]bool{}
	for _, k := range toRemove {
		removed[k] = true
	}
	var want []int64
	for _, k := range keys {
		if !removed[k] {
			want = append(want, k)
		}
	}
	sortInt64s(want)

	assert.Equal(t, want, collectAscending(t, tree))
	for _, k := range toRemove {
		_, found, err := tree.GetValue(EncodeInt64Key(k))
		require.NoError(t, err)
		assert.False(t, found)
	}
}

func TestTree_RemoveUnknownKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 16)
	_, err := tree.Insert(EncodeInt64Key(1), RowId{PageID: 1})
	require.NoError(t, err)

	require.NoError(t, tree.Remove(EncodeInt64Key(999)))
	assert.Equal(t, []int64{1}, collectAscending(t, tree))
}

func TestTree_RemoveAllCollapsesToEmptyRoot(t *testing.T) {
	tree := newTestTree(t, 16)
	keys := []int64{1, 2, 3, 4, 5}
	for _, k := range keys {
		_, err := tree.Insert(EncodeInt64Key(k), RowId{PageID: int32(k)})
		require.NoError(t, err)
	}
	for _, k := range keys {
		require.NoError(t, tree.Remove(EncodeInt64Key(k)))
	}

	empty, err := tree.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Empty(t, collectAscending(t, tree))

	ok, err := tree.Insert(EncodeInt64Key(100), RowId{PageID: 100})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{100}, collectAscending(t, tree))
}

func TestTree_LargeRandomInsertIteratesAscending(t *testing.T) {
	tree := newTestTree(t, 64)

	keys := make([]int64, 1000)
	for i := range keys {
		keys[i] = int64(i + 1)
	}
	rand.New(rand.NewSource(7)).Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	for _, k := range keys {
		ok, err := tree.Insert(EncodeInt64Key(k), RowId{PageID: int32(k)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	got := collectAscending(t, tree)
	require.Len(t, got, 1000)
	for i, k := range got {
		assert.Equal(t, int64(i+1), k)
	}
}

func TestTree_SeekStartsAtOrAfterKey(t *testing.T) {
	tree := newTestTree(t, 16)
	for _, k := range []int64{10, 20, 30, 40, 50} {
		_, err := tree.Insert(EncodeInt64Key(k), RowId{PageID: int32(k)})
		require.NoError(t, err)
	}

	it, err := tree.Seek(EncodeInt64Key(25))
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for !it.End() {
		got = append(got, DecodeInt64Key(it.Key()))
		it.Next()
	}
	assert.Equal(t, []int64{30, 40, 50}, got)
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// newTestTreeWithOrder overrides the key-size-derived node order so tests
// can force internal splits and multi-level rebalancing without inserting
// hundreds of thousands of keys.
func newTestTreeWithOrder(t *testing.T, poolSize, maxLeaf, maxInternal int) *Tree {
	path := filepath.Join(t.TempDir(), uuid.NewString()+".db")
	dm, err := disk.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.New(dm, poolSize)
	roots, err := InitIndexRoots(pool)
	require.NoError(t, err)

	return &Tree{
		pool:        pool,
		keyManager:  Int64KeyManager{},
		roots:       roots,
		indexID:     1,
		maxLeaf:     maxLeaf,
		maxInternal: maxInternal,
	}
}

func TestTree_SmallOrderForcesInternalSplitsAndMerges(t *testing.T) {
	tree := newTestTreeWithOrder(t, 64, 4, 4)

	keys := make([]int64, 200)
	for i := range keys {
		keys[i] = int64(i + 1)
	}
	rand.New(rand.NewSource(11)).Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	for _, k := range keys {
		ok, err := tree.Insert(EncodeInt64Key(k), RowId{PageID: int32(k)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	var want []int64
	for i := int64(1); i <= 200; i++ {
		want = append(want, i)
	}
	assert.Equal(t, want, collectAscending(t, tree))

	toRemove := append([]int64(nil), keys[:100]...)
	rand.New(rand.NewSource(13)).Shuffle(len(toRemove), func(i, j int) {
		toRemove[i], toRemove[j] = toRemove[j], toRemove[i]
	})
	for _, k := range toRemove {
		require.NoError(t, tree.Remove(EncodeInt64Key(k)))
	}

	removed := map[int64]bool{}
	for _, k := range toRemove {
		removed[k] = true
	}
	want = nil
	for i := int64(1); i <= 200; i++ {
		if !removed[i] {
			want = append(want, i)
		}
	}
	assert.Equal(t, want, collectAscending(t, tree))
}
