package simfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanOffsets(t *testing.T) {
	tests := []struct {
		start, length int64
		want          []span
	}{
		{0, 0, nil},
		{5, 0, nil},
		{0, 10, []span{{0, 0, 10}}},
		{0, 64, []span{{0, 0, 64}}},
		{0, 65, []span{{0, 0, 64}, {1, 0, 1}}},
		{64, 1, []span{{1, 0, 1}}},
		{60, 10, []span{{0, 60, 4}, {1, 0, 6}}},
		{10, 200, []span{{0, 10, 54}, {1, 0, 64}, {2, 0, 64}, {3, 0, 18}}},
		{130, 62, []span{{2, 2, 62}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spanOffsets(tt.start, tt.length, 64), "start=%d length=%d", tt.start, tt.length)
	}
}

func TestSpanOffsetsBlockCount(t *testing.T) {
	const bs = 16
	for start := int64(0); start < 4*bs; start++ {
		for length := int64(0); length < 5*bs; length++ {
			spans := spanOffsets(start, length, bs)
			var want int64
			if length > 0 {
				want = (start+length+bs-1)/bs - start/bs
			}
			require.Len(t, spans, int(want), "start=%d length=%d", start, length)

			var total int64
			for i, sp := range spans {
				assert.LessOrEqual(t, sp.Skip+sp.Take, int64(bs))
				assert.Positive(t, sp.Take)
				if i > 0 {
					assert.Zero(t, sp.Skip)
					assert.Equal(t, spans[i-1].Index+1, sp.Index)
				}
				total += sp.Take
			}
			assert.Equal(t, length, total)
		}
	}
}

func TestEnsureCapacityChainLength(t *testing.T) {
	g := smallGeometry
	bs := int64(g.BlockSize)
	for _, end := range []int64{0, 1, bs - 1, bs, bs + 1, 3 * bs, 8 * bs} {
		snap := newSnapshot(g)
		slot, err := snap.create("f")
		require.NoError(t, err)
		chain, err := snap.ensureCapacity(slot, end)
		require.NoError(t, err)
		assert.Len(t, chain, int(blocksFor(end, bs)), "end=%d", end)
		if end == 0 {
			assert.Equal(t, NilRef, snap.Files[slot].FirstBlock)
			continue
		}
		walked, err := snap.walk(snap.Files[slot].FirstBlock)
		require.NoError(t, err)
		assert.Equal(t, chain, walked)
	}
}

func TestEnsureCapacityExtendsExistingChain(t *testing.T) {
	snap := newSnapshot(smallGeometry)
	a, _ := snap.create("a")
	b, _ := snap.create("b")
	_, err := snap.ensureCapacity(a, 64)
	require.NoError(t, err)
	_, err = snap.ensureCapacity(b, 64)
	require.NoError(t, err)
	chain, err := snap.ensureCapacity(a, 129)
	require.NoError(t, err)
	// first fit: a got 0, b got 1, a's extension takes 2 and 3
	assert.Equal(t, []BlockRef{0, 2, 3}, chain)
	assert.Equal(t, BlockRef(2), snap.Blocks[0].Next)
	assert.Equal(t, NilRef, snap.Blocks[3].Next)

	// shrinking is not ensureCapacity's job
	chain, err = snap.ensureCapacity(a, 10)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestEnsureCapacityOutOfSpace(t *testing.T) {
	snap := newSnapshot(smallGeometry)
	slot, _ := snap.create("f")
	_, err := snap.ensureCapacity(slot, 9*64)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestWalkDetectsCycle(t *testing.T) {
	snap := newSnapshot(smallGeometry)
	slot, _ := snap.create("f")
	chain, err := snap.ensureCapacity(slot, 3*64)
	require.NoError(t, err)
	snap.Blocks[chain[2]].Next = chain[0]
	_, err = snap.walk(snap.Files[slot].FirstBlock)
	assert.ErrorIs(t, err, ErrCorruptChain)
}

func TestWalkDetectsBadRefs(t *testing.T) {
	snap := newSnapshot(smallGeometry)
	_, err := snap.walk(BlockRef(99))
	assert.ErrorIs(t, err, ErrCorruptChain)

	// block 0 is still free
	_, err = snap.walk(BlockRef(0))
	assert.ErrorIs(t, err, ErrCorruptChain)

	chain, err := snap.walk(NilRef)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestWalkDetectsAddressOutsideDataRegion(t *testing.T) {
	snap := newSnapshot(smallGeometry)
	slot, _ := snap.create("f")
	chain, err := snap.ensureCapacity(slot, 2*64)
	require.NoError(t, err)
	snap.Blocks[chain[1]].Addr = smallGeometry.MaxBlocks

	_, err = snap.walk(snap.Files[slot].FirstBlock)
	assert.ErrorIs(t, err, ErrCorruptChain)
	_, err = snap.ensureCapacity(slot, 3*64)
	assert.ErrorIs(t, err, ErrCorruptChain)
}

func TestAllocatorFirstFit(t *testing.T) {
	snap := newSnapshot(smallGeometry)
	ref, err := snap.findFreeBlock()
	require.NoError(t, err)
	assert.Equal(t, BlockRef(0), ref)
	// finding does not allocate
	ref, _ = snap.findFreeBlock()
	assert.Equal(t, BlockRef(0), ref)

	for i := range snap.Blocks {
		snap.allocate(BlockRef(i))
	}
	_, err = snap.findFreeBlock()
	assert.ErrorIs(t, err, ErrOutOfSpace)

	snap.Blocks[5].Next = 6
	snap.free(5)
	assert.True(t, snap.Blocks[5].IsFree())
	assert.Equal(t, NilRef, snap.Blocks[5].Next)
	ref, _ = snap.findFreeBlock()
	assert.Equal(t, BlockRef(5), ref)
}
