package simfs

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// BlockDevice is the random-access view of an image that one operation holds
// for its lifetime.
type BlockDevice interface {
	Read(offset int64, data []byte) error
	Write(offset int64, data []byte) error
	Close() error
}

type FileBlockDevice struct {
	file *os.File
}

// OpenFileBlockDevice opens an existing image. The handle is meant to live
// for a single operation.
func OpenFileBlockDevice(path string, writable bool) (*FileBlockDevice, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, ioErr("open "+path, err)
	}
	return &FileBlockDevice{file: file}, nil
}

// CreateFileBlockDevice creates or truncates path to exactly size zero bytes.
func CreateFileBlockDevice(path string, size int64) (*FileBlockDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, ioErr("create "+path, err)
	}
	err = file.Truncate(size)
	if err != nil {
		file.Close()
		return nil, ioErr("truncate "+path, err)
	}
	return &FileBlockDevice{file: file}, nil
}

func (f *FileBlockDevice) Read(offset int64, data []byte) error {
	nbytes, err := f.file.ReadAt(data, offset)
	if err != nil && !(err == io.EOF && nbytes == len(data)) {
		return ioErr("read", errors.Wrapf(err, "offset %d, got %d of %d bytes", offset, nbytes, len(data)))
	}
	if nbytes != len(data) {
		return ioErr("read", errors.Errorf("short read at offset %d", offset))
	}
	return nil
}

func (f *FileBlockDevice) Write(offset int64, data []byte) error {
	nbytes, err := f.file.WriteAt(data, offset)
	if err != nil {
		return ioErr("write", errors.Wrapf(err, "offset %d", offset))
	}
	if nbytes != len(data) {
		return ioErr("write", errors.Errorf("short write at offset %d", offset))
	}
	return nil
}

func (f *FileBlockDevice) Close() error {
	if err := f.file.Close(); err != nil {
		return ioErr("close", err)
	}
	return nil
}
