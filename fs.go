/*
Exposes a simfs image through FUSE as a single flat directory.

node 1 is the root directory; the file in slot i is node i+2.
*/
package simfs

import (
	"bytes"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type MountFS struct {
	fuse.RawFileSystem
	img       *Image
	openfiles *OpenfileMap
	// the engine is single threaded; the kernel is not
	mu sync.Mutex
}

const RootIno = 1

func NewMountFS(img *Image) *MountFS {
	return &MountFS{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		img:           img,
		openfiles:     NewOpenfileMap(),
	}
}

func (fs *MountFS) String() string {
	return "simfs"
}

func slotIno(slot FileSlot) uint64 {
	return uint64(slot) + 2
}

// toStatus maps engine errors onto errno values.
func toStatus(err error) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, ErrAlreadyExists):
		return fuse.Status(syscall.EEXIST)
	case errors.Is(err, ErrInvalidName):
		return fuse.Status(syscall.ENAMETOOLONG)
	case errors.Is(err, ErrOutOfSpace), errors.Is(err, ErrOutOfResources):
		return fuse.Status(syscall.ENOSPC)
	case errors.Is(err, ErrInvalidRange):
		return fuse.EINVAL
	default:
		return fuse.EIO
	}
}

func fileAttr(slot FileSlot, f *FileEntry, g Geometry) fuse.Attr {
	return fuse.Attr{
		Ino:     slotIno(slot),
		Size:    uint64(f.Size),
		Blocks:  uint64(blocksFor(int64(f.Size), int64(g.BlockSize))) * uint64(g.BlockSize) / 512,
		Mode:    syscall.S_IFREG | 0644,
		Nlink:   1,
		Blksize: g.BlockSize,
	}
}

func rootAttr() fuse.Attr {
	return fuse.Attr{
		Ino:   RootIno,
		Mode:  syscall.S_IFDIR | 0755,
		Nlink: 2,
	}
}

// fileOf resolves a node id to the directory entry it currently names.
func (fs *MountFS) fileOf(ino uint64) (*Snapshot, FileSlot, fuse.Status) {
	snap, err := fs.img.Stat()
	if err != nil {
		logrus.Errorf("op=%s, ino=%v, err=%v", "fileOf", ino, err)
		return nil, -1, toStatus(err)
	}
	if ino < 2 || ino-2 >= uint64(len(snap.Files)) {
		return nil, -1, fuse.ENOENT
	}
	slot := FileSlot(ino - 2)
	if snap.Files[slot].IsEmpty() {
		return nil, -1, fuse.ENOENT
	}
	return snap, slot, fuse.OK
}

// checkHandle rejects a file handle that was never opened or that belongs to
// another node.
func (fs *MountFS) checkHandle(fh, ino uint64) fuse.Status {
	h := fs.openfiles.Get(fh)
	if h == nil || h.ino != ino {
		logrus.Warnf("bad file handle fh=%v ino=%v", fh, ino)
		return fuse.EBADF
	}
	return fuse.OK
}

func (fs *MountFS) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	logrus.Debugf("[in ] op=%s", "StatFs")
	fs.mu.Lock()
	defer fs.mu.Unlock()
	snap, err := fs.img.Stat()
	if err != nil {
		logrus.Errorf("op=%s, err=%v", "StatFs", err)
		return toStatus(err)
	}
	g := snap.Geometry
	free := uint64(snap.FreeBlocks())
	out.Blocks = uint64(g.MaxBlocks)
	out.Bfree = free
	out.Bavail = free
	out.Files = uint64(g.MaxFiles)
	out.Ffree = uint64(int(g.MaxFiles) - snap.UsedFiles())
	out.Bsize = g.BlockSize
	out.Frsize = g.BlockSize
	out.NameLen = MaxNameLen
	logrus.Debugf("[out] op=%s, out=%s", "StatFs", JsonStringify(out))
	return fuse.OK
}

// Lookup 根据文件名查找文件
func (fs *MountFS) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) (code fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, name=%s", "Lookup", header.NodeId, name)
	if header.NodeId != RootIno {
		logrus.Errorf("Lookup %q called on non-Directory node %d", name, header.NodeId)
		return fuse.ENOTDIR
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	snap, err := fs.img.Stat()
	if err != nil {
		logrus.Errorf("op=%s, err=%v, name=%s", "Lookup", err, name)
		return toStatus(err)
	}
	slot, ok := snap.find(name)
	if !ok {
		return fuse.ENOENT
	}
	out.NodeId = slotIno(slot)
	out.Generation = 1
	out.Attr = fileAttr(slot, &snap.Files[slot], snap.Geometry)
	logrus.Infof("[out] op=%s, ino=%v, name=%s", "Lookup", out.NodeId, name)
	return fuse.OK
}

func (fs *MountFS) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) (code fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v", "GetAttr", input.NodeId)
	if input.NodeId == RootIno {
		out.Attr = rootAttr()
		return fuse.OK
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	snap, slot, code := fs.fileOf(input.NodeId)
	if !code.Ok() {
		return code
	}
	out.Attr = fileAttr(slot, &snap.Files[slot], snap.Geometry)
	logrus.Infof("[out] op=%s, size=%d", "GetAttr", out.Size)
	return fuse.OK
}

func (fs *MountFS) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) (status fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, flags=%v", "Open", input.NodeId, Join(DecodeFlags(input.Flags), "|"))
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, _, code := fs.fileOf(input.NodeId); !code.Ok() {
		return code
	}
	out.Fh = fs.openfiles.Register(input.NodeId, input.Flags)
	return fuse.OK
}

// Create 创建文件
func (fs *MountFS) Create(cancel <-chan struct{}, input *fuse.CreateIn,
	name string, out *fuse.CreateOut) (code fuse.Status) {
	logrus.Infof("[in ] op=%s, name=%s, parent_ino=%v, flags=%v", "Create", name, input.NodeId, Join(DecodeFlags(input.Flags), "|"))
	if input.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.img.Create(name); err != nil {
		logrus.Errorf("Create failed: %v", err)
		return toStatus(err)
	}
	snap, err := fs.img.Stat()
	if err != nil {
		logrus.Errorf("Create failed: %v", err)
		return toStatus(err)
	}
	slot, ok := snap.find(name)
	if !ok {
		return fuse.EIO
	}
	out.EntryOut = fuse.EntryOut{
		NodeId:     slotIno(slot),
		Generation: 1,
		Attr:       fileAttr(slot, &snap.Files[slot], snap.Geometry),
	}
	out.OpenOut = fuse.OpenOut{
		Fh: fs.openfiles.Register(slotIno(slot), input.Flags),
	}
	logrus.Infof("[out] op=%s, ino=%v", "Create", out.NodeId)
	return fuse.OK
}

// 当读文件时，会调用 Read Flush Release
func (fs *MountFS) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, off=%d", "Read", input.NodeId, input.Offset)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	snap, slot, code := fs.fileOf(input.NodeId)
	if !code.Ok() {
		return nil, code
	}
	if code := fs.checkHandle(input.Fh, input.NodeId); !code.Ok() {
		return nil, code
	}
	f := &snap.Files[slot]
	size := uint64(f.Size)
	if input.Offset >= size {
		return fuse.ReadResultData(nil), fuse.OK
	}
	n := Min(uint64(len(buf)), size-input.Offset)
	var out bytes.Buffer
	if _, err := fs.img.Read(f.FileName(), int64(input.Offset), int64(n), &out); err != nil {
		logrus.Errorf("Read failed: %v", err)
		return nil, toStatus(err)
	}
	logrus.Infof("[out] op=%s, ino=%v, nbytes=%v, out=%s", "Read", input.NodeId, out.Len(), PreviewBuffer(out.Bytes(), 64))
	return fuse.ReadResultData(out.Bytes()), fuse.OK
}

func (fs *MountFS) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (written uint32, code fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, off=%d, len=%d", "Write", input.NodeId, input.Offset, len(data))
	fs.mu.Lock()
	defer fs.mu.Unlock()
	snap, slot, code := fs.fileOf(input.NodeId)
	if !code.Ok() {
		return 0, code
	}
	if code := fs.checkHandle(input.Fh, input.NodeId); !code.Ok() {
		return 0, code
	}
	name := snap.Files[slot].FileName()
	if err := fs.img.Write(name, int64(input.Offset), int64(len(data)), bytes.NewReader(data)); err != nil {
		logrus.Errorf("Write failed: %v", err)
		return 0, toStatus(err)
	}
	logrus.Infof("[out] op=%s n=%v", "Write", len(data))
	return uint32(len(data)), fuse.OK
}

func (fs *MountFS) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) (code fuse.Status) {
	logrus.Infof("[in ] op=%s, name=%s, ino=%v", "Unlink", name, header.NodeId)
	if header.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.img.Unlink(name); err != nil {
		logrus.Errorf("Unlink failed: %v", err)
		return toStatus(err)
	}
	logrus.Debugf("[out] op=%s", "Unlink")
	return fuse.OK
}

func (fs *MountFS) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	logrus.Infof("[in ] op=%s, ino=%v, fh=%v", "Release", input.NodeId, input.Fh)
	fs.openfiles.Remove(input.Fh)
}

func (fs *MountFS) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) (status fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v", "OpenDir", input.NodeId)
	if input.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	out.Fh = fs.openfiles.Register(input.NodeId, input.Flags)
	return fuse.OK
}

func (fs *MountFS) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	logrus.Infof("[in ] op=%s, ino=%v, off=%d", "ReadDir", input.NodeId, input.Offset)
	if input.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	snap, err := fs.img.Stat()
	if err != nil {
		logrus.Errorf("op=%s, err=%v", "ReadDir", err)
		return toStatus(err)
	}
	ents := []fuse.DirEntry{
		{Name: ".", Ino: RootIno, Mode: syscall.S_IFDIR},
		{Name: "..", Ino: RootIno, Mode: syscall.S_IFDIR},
	}
	for i := range snap.Files {
		if snap.Files[i].IsEmpty() {
			continue
		}
		ents = append(ents, fuse.DirEntry{
			Name: snap.Files[i].FileName(),
			Ino:  slotIno(FileSlot(i)),
			Mode: syscall.S_IFREG,
		})
	}
	// the kernel resumes at the offset of the last entry it received
	for _, e := range ents[Min(input.Offset, uint64(len(ents))):] {
		if !l.AddDirEntry(e) {
			break
		}
	}
	logrus.Debugf("op=%s, entries=%d", "ReadDir", len(ents))
	return fuse.OK
}

func (fs *MountFS) ReleaseDir(input *fuse.ReleaseIn) {
	logrus.Infof("[in ] op=%s, ino=%v, fh=%d", "ReleaseDir", input.NodeId, input.Fh)
	fs.openfiles.Remove(input.Fh)
}
