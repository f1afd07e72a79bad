package simfs

import (
	"github.com/pkg/errors"
)

// Geometry describes the capacities of one image. It is read from the image
// header when the image is opened and travels with every snapshot.
type Geometry struct {
	BlockSize uint32
	MaxFiles  uint32
	MaxBlocks uint32
}

// DefaultGeometry matches the layout produced by the classic simfs tool.
var DefaultGeometry = Geometry{
	BlockSize: 128,
	MaxFiles:  16,
	MaxBlocks: 32,
}

const minBlockSize = 64

func (g Geometry) Validate() error {
	if g.BlockSize < minBlockSize || g.BlockSize&(g.BlockSize-1) != 0 {
		return errors.Wrapf(ErrBadGeometry, "block size %d must be a power of two >= %d", g.BlockSize, minBlockSize)
	}
	if g.MaxFiles == 0 {
		return errors.Wrap(ErrBadGeometry, "max files must be positive")
	}
	if g.MaxBlocks == 0 {
		return errors.Wrap(ErrBadGeometry, "max blocks must be positive")
	}
	return nil
}

func (g Geometry) filesOffset() int64 {
	return headerRecordSize
}

func (g Geometry) blocksOffset() int64 {
	return g.filesOffset() + int64(g.MaxFiles)*fileRecordSize
}

func (g Geometry) metadataEnd() int64 {
	return g.blocksOffset() + int64(g.MaxBlocks)*blockRecordSize
}

// DataOffset is the first byte of the block region, rounded up to a block
// boundary so that no block overlaps the metadata.
func (g Geometry) DataOffset() int64 {
	bs := int64(g.BlockSize)
	return (g.metadataEnd() + bs - 1) / bs * bs
}

// BlockOffset returns the image offset of the block with physical address addr.
func (g Geometry) BlockOffset(addr uint32) int64 {
	return g.DataOffset() + int64(addr)*int64(g.BlockSize)
}

func (g Geometry) ImageSize() int64 {
	return g.BlockOffset(g.MaxBlocks)
}

// MaxFileSize is the largest logical size a single file can reach.
func (g Geometry) MaxFileSize() int64 {
	return int64(g.MaxBlocks) * int64(g.BlockSize)
}

func (g Geometry) header() *Header {
	return &Header{
		MagicNum:   HeaderMagicNum,
		Version:    HeaderVersion,
		BlockSize:  g.BlockSize,
		MaxFiles:   g.MaxFiles,
		MaxBlocks:  g.MaxBlocks,
		DataOffset: uint64(g.DataOffset()),
	}
}

func geometryOf(h *Header) (Geometry, error) {
	g := Geometry{
		BlockSize: h.BlockSize,
		MaxFiles:  h.MaxFiles,
		MaxBlocks: h.MaxBlocks,
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, errors.Wrap(ErrBadImage, err.Error())
	}
	if h.DataOffset != uint64(g.DataOffset()) {
		return Geometry{}, errors.Wrapf(ErrBadImage, "data offset %d, expected %d", h.DataOffset, g.DataOffset())
	}
	return g, nil
}
