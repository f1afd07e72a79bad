package simfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	assert.Equal(t, 1, Min(3, 1, 2))
	assert.Equal(t, int64(3), Max(int64(3), 1, 2))
	assert.Equal(t, "a", Min("b", "a"))
}

func TestDecodeFlags(t *testing.T) {
	assert.Equal(t, "O_CREAT|O_RDWR|O_TRUNC", Join(DecodeFlags(O_RDWR|O_CREAT|O_TRUNC), "|"))
	assert.Equal(t, []string{"O_RDONLY"}, DecodeFlags(0))
}

func TestCheckMagic(t *testing.T) {
	assert.True(t, CheckMagic([]byte{0x53, 0x4d, 0x46, 0x53}, HeaderMagicNum))
	assert.False(t, CheckMagic([]byte{0, 0, 0, 0}, HeaderMagicNum))
	assert.False(t, CheckMagic([]byte{0x53}, HeaderMagicNum))
}

func TestPreviewBuffer(t *testing.T) {
	assert.Equal(t, "hi(6869)", PreviewBuffer([]byte("hi there"), 2))
}
