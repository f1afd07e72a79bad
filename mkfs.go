package simfs

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Format creates (or overwrites) an image at path laid out for g: header,
// an empty file table, a block table with every block free, and a zeroed
// block region.
func Format(path string, g Geometry) (err error) {
	if err := g.Validate(); err != nil {
		return err
	}
	logrus.Infof("format %s: block_size=%d max_files=%d max_blocks=%d data_offset=0x%x size=%d",
		path, g.BlockSize, g.MaxFiles, g.MaxBlocks, g.DataOffset(), g.ImageSize())
	dev, err := CreateFileBlockDevice(path, g.ImageSize())
	if err != nil {
		return err
	}
	defer func() {
		cerr := dev.Close()
		if err == nil {
			err = cerr
		}
	}()
	// 1. 写入头部
	if err := writeHeader(dev, g); err != nil {
		return errors.Wrap(err, "write failed on init")
	}
	// 2. 空的文件表与块表
	if err := newSnapshot(g).save(dev); err != nil {
		return errors.Wrap(err, "write failed on init")
	}
	return nil
}
