package simfs

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestImage formats a fresh image with geometry g in a temp dir.
func newTestImage(t *testing.T, g Geometry) *Image {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	require.NoError(t, Format(path, g), "failed to format image")
	img, err := OpenImage(path)
	require.NoError(t, err, "failed to open image")
	return img
}

func writeString(t *testing.T, img *Image, name string, start int64, data string) {
	t.Helper()
	require.NoError(t, img.Write(name, start, int64(len(data)), bytes.NewBufferString(data)))
}

func readString(t *testing.T, img *Image, name string, start, length int64) string {
	t.Helper()
	var out bytes.Buffer
	_, err := img.Read(name, start, length, &out)
	require.NoError(t, err)
	return out.String()
}

func stat(t *testing.T, img *Image) *Snapshot {
	t.Helper()
	snap, err := img.Stat()
	require.NoError(t, err)
	return snap
}

func fileOf(t *testing.T, snap *Snapshot, name string) *FileEntry {
	t.Helper()
	slot, ok := snap.find(name)
	require.True(t, ok, "file %q not found", name)
	return &snap.Files[slot]
}

func chainOf(t *testing.T, snap *Snapshot, name string) []BlockRef {
	t.Helper()
	chain, err := snap.walk(fileOf(t, snap, name).FirstBlock)
	require.NoError(t, err)
	return chain
}

var smallGeometry = Geometry{BlockSize: 64, MaxFiles: 4, MaxBlocks: 8}
