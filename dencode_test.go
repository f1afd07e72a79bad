package simfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSizes(t *testing.T) {
	n, err := SizeOf(&FileEntry{})
	require.NoError(t, err)
	assert.Equal(t, fileRecordSize, n)

	n, err = SizeOf(&BlockEntry{})
	require.NoError(t, err)
	assert.Equal(t, blockRecordSize, n)

	n, err = SizeOf(&Header{})
	require.NoError(t, err)
	assert.LessOrEqual(t, n, headerRecordSize)
}

func TestFileEntryLayout(t *testing.T) {
	f := FileEntry{Size: 10, FirstBlock: NilRef}
	f.setName("a")
	b, err := BytesOf(&f)
	require.NoError(t, err)
	require.Len(t, b, fileRecordSize)
	assert.Equal(t, byte('a'), b[0])
	assert.Equal(t, make([]byte, NameFieldLen-1), b[1:NameFieldLen])
	assert.Equal(t, []byte{10, 0, 0, 0}, b[12:16])
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, b[16:20])
}

func TestBytesOfRequiresPointer(t *testing.T) {
	_, err := BytesOf(BlockEntry{})
	assert.Error(t, err)
}

func TestPackRecords(t *testing.T) {
	blocks := []BlockEntry{
		{State: BlockAllocated, Addr: 3, Next: 1},
		{State: BlockFree, Addr: 7, Next: NilRef},
	}
	data, err := packRecords(blocks, blockRecordSize)
	require.NoError(t, err)
	require.Len(t, data, 2*blockRecordSize)
	assert.Equal(t, byte(BlockAllocated), data[0])
	assert.Equal(t, byte(BlockFree), data[blockRecordSize])

	got, err := unpackRecords[BlockEntry](data, blockRecordSize, 2)
	require.NoError(t, err)
	assert.Equal(t, blocks, got)

	_, err = unpackRecords[BlockEntry](data[:blockRecordSize], blockRecordSize, 2)
	assert.ErrorIs(t, err, ErrBadImage)
}

func TestPad(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 0, 0}, Pad([]byte{1, 2}, 4))
	assert.Panics(t, func() { Pad([]byte{1, 2, 3}, 2) })
}
