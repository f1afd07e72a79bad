package simfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *Snapshot {
	t.Helper()
	snap := newSnapshot(smallGeometry)
	a, err := snap.create("a")
	require.NoError(t, err)
	b, err := snap.create("b")
	require.NoError(t, err)
	_, err = snap.ensureCapacity(a, 100)
	require.NoError(t, err)
	snap.Files[a].Size = 100
	_, err = snap.ensureCapacity(b, 10)
	require.NoError(t, err)
	snap.Files[b].Size = 10
	require.NoError(t, snap.Verify())
	return snap
}

func TestVerifySharedBlock(t *testing.T) {
	snap := populated(t)
	// b's only block also becomes a's tail
	snap.Blocks[1].Next = 2
	assert.ErrorIs(t, snap.Verify(), ErrCorruptChain)
}

func TestVerifyLeakedBlock(t *testing.T) {
	snap := populated(t)
	snap.allocate(5)
	assert.ErrorIs(t, snap.Verify(), ErrCorruptChain)
}

func TestVerifySizeMismatch(t *testing.T) {
	snap := populated(t)
	slot, _ := snap.find("b")
	snap.Files[slot].Size = 200
	assert.ErrorIs(t, snap.Verify(), ErrCorruptChain)

	snap = populated(t)
	slot, _ = snap.find("b")
	snap.Files[slot].Size = 0
	assert.ErrorIs(t, snap.Verify(), ErrCorruptChain)
}

func TestVerifyDuplicateName(t *testing.T) {
	snap := populated(t)
	snap.Files[2].setName("a")
	assert.ErrorIs(t, snap.Verify(), ErrCorruptChain)
}

func TestCheckOnImage(t *testing.T) {
	img := newTestImage(t, smallGeometry)
	require.NoError(t, img.Create("a"))
	writeString(t, img, "a", 0, "hello")

	snap := stat(t, img)
	snap.Blocks[0].State = BlockFree
	dev, err := OpenFileBlockDevice(img.Path(), true)
	require.NoError(t, err)
	require.NoError(t, snap.save(dev))
	require.NoError(t, dev.Close())

	assert.ErrorIs(t, img.Check(), ErrCorruptChain)
	_, err = img.Read("a", 0, 5, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrCorruptChain)
}

func TestDump(t *testing.T) {
	snap := populated(t)
	var out bytes.Buffer
	require.NoError(t, snap.Dump(&out))
	s := out.String()
	assert.Contains(t, s, "block_size=64 max_files=4 max_blocks=8")
	assert.Contains(t, s, `[0] name="a" size=100 first=0`)
	assert.Contains(t, s, `[1] name="b" size=10 first=2`)
	assert.Contains(t, s, "[0] allocated addr=0 next=1")
	assert.Contains(t, s, "[7] free addr=7 next=-1")
}
