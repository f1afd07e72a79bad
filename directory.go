package simfs

import (
	"strings"

	"github.com/pkg/errors"
)

// find looks name up in the file table. Names are compared exactly.
func (s *Snapshot) find(name string) (FileSlot, bool) {
	if name == "" {
		return -1, false
	}
	for i := range s.Files {
		if !s.Files[i].IsEmpty() && s.Files[i].FileName() == name {
			return FileSlot(i), true
		}
	}
	return -1, false
}

func validName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return errors.Wrapf(ErrInvalidName, "%q: length must be 1..%d", name, MaxNameLen)
	}
	if strings.IndexByte(name, 0) >= 0 || strings.IndexByte(name, '/') >= 0 {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

// create takes the first empty slot for name.
func (s *Snapshot) create(name string) (FileSlot, error) {
	if err := validName(name); err != nil {
		return -1, err
	}
	if _, ok := s.find(name); ok {
		return -1, errors.Wrapf(ErrAlreadyExists, "%q", name)
	}
	for i := range s.Files {
		if s.Files[i].IsEmpty() {
			s.Files[i].setName(name)
			s.Files[i].Size = 0
			s.Files[i].FirstBlock = NilRef
			return FileSlot(i), nil
		}
	}
	return -1, ErrOutOfResources
}

func (s *Snapshot) deleteEntry(slot FileSlot) {
	f := &s.Files[slot]
	f.Name = [NameFieldLen]byte{}
	f.FirstBlock = NilRef
	f.Size = 0
}
