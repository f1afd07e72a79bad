package simfs

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// 打开文件表，管理 FUSE 层面的文件把手

type FileHandle struct {
	fh    uint64
	ino   uint64
	flags uint32
}

type OpenfileMap struct {
	mu      sync.Mutex
	nextgen uint64
	// key: fh
	files map[uint64]*FileHandle
}

func NewOpenfileMap() *OpenfileMap {
	m := &OpenfileMap{
		nextgen: 1,
		files:   map[uint64]*FileHandle{},
	}
	return m
}

func (m *OpenfileMap) Get(fh uint64) *FileHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[fh]
}

func (m *OpenfileMap) Register(ino uint64, flags uint32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	fh := m.nextgen
	m.nextgen++
	m.files[fh] = &FileHandle{
		fh:    fh,
		ino:   ino,
		flags: flags,
	}
	logrus.Debugf("[FS_HANDLE] Register fh=%v ino=%v flags=%v", fh, ino, Join(DecodeFlags(flags), "|"))
	return fh
}

func (m *OpenfileMap) Remove(fh uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.files[fh]
	if !ok {
		logrus.Warnf("[FS_HANDLE] Remove unknown fh=%v", fh)
		return
	}
	logrus.Debugf("[FS_HANDLE] Remove fh=%v, ino=%v", fh, h.ino)
	delete(m.files, fh)
}

func (m *OpenfileMap) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}
