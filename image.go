package simfs

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Image is a simfs image on the host file system. It holds no open handle;
// every operation opens the image, loads one snapshot and closes it again.
type Image struct {
	path string
	geo  Geometry
}

// txn is the scope of one operation: the device handle and the snapshot
// loaded through it.
type txn struct {
	dev  BlockDevice
	snap *Snapshot
}

// OpenImage reads the geometry of the image at path.
func OpenImage(path string) (*Image, error) {
	dev, err := OpenFileBlockDevice(path, false)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	g, err := loadHeader(dev)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	logrus.Debugf("open image %s block_size=%d max_files=%d max_blocks=%d", path, g.BlockSize, g.MaxFiles, g.MaxBlocks)
	return &Image{path: path, geo: g}, nil
}

func (img *Image) Path() string {
	return img.path
}

func (img *Image) Geometry() Geometry {
	return img.geo
}

// withSnapshot runs fn with a freshly loaded snapshot and releases the device
// when fn returns.
func (img *Image) withSnapshot(op string, writable bool, fn func(tx *txn) error) (err error) {
	logrus.Debugf("[in ] op=%s, image=%s", op, img.path)
	dev, err := OpenFileBlockDevice(img.path, writable)
	if err != nil {
		return err
	}
	defer func() {
		cerr := dev.Close()
		if err == nil {
			err = cerr
		}
		logrus.Debugf("[out] op=%s, err=%v", op, err)
	}()
	snap, err := loadSnapshot(dev, img.geo)
	if err != nil {
		return err
	}
	return fn(&txn{dev: dev, snap: snap})
}

func (tx *txn) commit() error {
	return tx.snap.save(tx.dev)
}

func (tx *txn) blockOffset(ref BlockRef) int64 {
	return tx.snap.Geometry.BlockOffset(tx.snap.Blocks[ref].Addr)
}

func (tx *txn) lookup(name string) (FileSlot, *FileEntry, error) {
	slot, ok := tx.snap.find(name)
	if !ok {
		return -1, nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return slot, &tx.snap.Files[slot], nil
}

// Create adds an empty file called name.
func (img *Image) Create(name string) error {
	return img.withSnapshot("Create", true, func(tx *txn) error {
		slot, err := tx.snap.create(name)
		if err != nil {
			return err
		}
		logrus.Infof("create %q in slot %d", name, slot)
		return tx.commit()
	})
}

// Write stores exactly length bytes read from src at offset start of name.
// start may not exceed the current size; the file grows as needed.
func (img *Image) Write(name string, start, length int64, src io.Reader) error {
	if start < 0 || length < 0 {
		return errors.Wrapf(ErrInvalidRange, "start=%d length=%d", start, length)
	}
	// 先按容量上限检查，避免为超大 length 分配缓冲
	limit := Min(img.geo.MaxFileSize(), math.MaxUint32)
	if start > limit {
		return errors.Wrapf(ErrInvalidRange, "start %d beyond max file size %d", start, limit)
	}
	if length > limit-start {
		return errors.Wrapf(ErrOutOfSpace, "start=%d length=%d exceeds max file size %d", start, length, limit)
	}
	buf := make([]byte, length)
	if n, err := io.ReadFull(src, buf); err != nil {
		return errors.Wrapf(ErrInput, "please input %d bytes, got %d", length, n)
	}
	return img.withSnapshot("Write", true, func(tx *txn) error {
		slot, f, err := tx.lookup(name)
		if err != nil {
			return err
		}
		size := int64(f.Size)
		if start > size {
			return errors.Wrapf(ErrInvalidRange, "start %d beyond size %d of %q", start, size, name)
		}
		end := start + length
		newSize := Max(size, end)
		chain, err := tx.snap.ensureCapacity(slot, end)
		if err != nil {
			return err
		}
		f.Size = uint32(newSize)
		if err := tx.commit(); err != nil {
			return err
		}

		bs := int64(tx.snap.Geometry.BlockSize)
		offRead := int64(0)
		for _, sp := range spanOffsets(start, length, bs) {
			ref := chain[sp.Index]
			if err := tx.dev.Write(tx.blockOffset(ref)+sp.Skip, buf[offRead:offRead+sp.Take]); err != nil {
				return errors.Wrapf(err, "write block %d of %q", sp.Index, name)
			}
			offRead += sp.Take
		}

		// 最后写到的块如果包含 EOF，把 EOF 之后的部分清零
		if length > 0 {
			lastIdx := (end - 1) / bs
			eofIdx := (newSize - 1) / bs
			tail := newSize % bs
			if lastIdx == eofIdx && tail != 0 {
				zerobuf := make([]byte, bs-tail)
				if err := tx.dev.Write(tx.blockOffset(chain[eofIdx])+tail, zerobuf); err != nil {
					return errors.Wrapf(err, "pad block %d of %q", eofIdx, name)
				}
			}
		}
		logrus.Infof("write %q start=%d length=%d size=%d blocks=%d", name, start, length, newSize, len(chain))
		return nil
	})
}

// Read streams the bytes of [start, start+length) of name to dst and returns
// the number of bytes written. The range is not checked against the file
// size: bytes past EOF inside the last block are returned as stored, and the
// read stops at the end of the chain.
func (img *Image) Read(name string, start, length int64, dst io.Writer) (n int64, err error) {
	if start < 0 || length < 0 {
		return 0, errors.Wrapf(ErrInvalidRange, "start=%d length=%d", start, length)
	}
	err = img.withSnapshot("Read", false, func(tx *txn) error {
		_, f, err := tx.lookup(name)
		if err != nil {
			return err
		}
		if f.FirstBlock == NilRef {
			return errors.Wrapf(ErrEmptyFile, "%q", name)
		}
		chain, err := tx.snap.walk(f.FirstBlock)
		if err != nil {
			return err
		}
		if length > int64(f.Size)-start {
			logrus.Warnf("read %q beyond file size %d", name, f.Size)
		}
		bs := int64(tx.snap.Geometry.BlockSize)
		if avail := Max(int64(len(chain))*bs-start, 0); length > avail {
			logrus.Warnf("read %q stops at end of chain (%d blocks)", name, len(chain))
			length = avail
		}
		for _, sp := range spanOffsets(start, length, bs) {
			blkBuf := make([]byte, sp.Take)
			if err := tx.dev.Read(tx.blockOffset(chain[sp.Index])+sp.Skip, blkBuf); err != nil {
				return errors.Wrapf(err, "read block %d of %q", sp.Index, name)
			}
			wn, err := dst.Write(blkBuf)
			n += int64(wn)
			if err != nil {
				return ioErr("output", err)
			}
		}
		return nil
	})
	return n, err
}

// Delete removes name and releases its blocks. A file without blocks is
// reported as ErrEmptyFile and left in place.
func (img *Image) Delete(name string) error {
	return img.remove("Delete", name, false)
}

// Unlink is Delete that also accepts empty files.
func (img *Image) Unlink(name string) error {
	return img.remove("Unlink", name, true)
}

func (img *Image) remove(op string, name string, allowEmpty bool) error {
	return img.withSnapshot(op, true, func(tx *txn) error {
		slot, f, err := tx.lookup(name)
		if err != nil {
			return err
		}
		if f.FirstBlock == NilRef && !allowEmpty {
			return errors.Wrapf(ErrEmptyFile, "%q", name)
		}
		chain, err := tx.snap.walk(f.FirstBlock)
		if err != nil {
			return err
		}
		tx.snap.deleteEntry(slot)
		for _, ref := range chain {
			tx.snap.free(ref)
		}
		if err := tx.commit(); err != nil {
			return err
		}
		zerobuf := make([]byte, tx.snap.Geometry.BlockSize)
		for _, ref := range chain {
			if err := tx.dev.Write(tx.blockOffset(ref), zerobuf); err != nil {
				return errors.Wrapf(err, "zero block %d", ref)
			}
		}
		logrus.Infof("delete %q freed=%d", name, len(chain))
		return nil
	})
}

// Stat returns a snapshot of the image metadata for inspection.
func (img *Image) Stat() (*Snapshot, error) {
	var snap *Snapshot
	err := img.withSnapshot("Stat", false, func(tx *txn) error {
		snap = tx.snap
		return nil
	})
	return snap, err
}
