package simfs

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Verify checks that every allocated block belongs to exactly one file's
// chain, that no free block is reachable, that names are unique and that each
// file's size agrees with its chain.
func (s *Snapshot) Verify() error {
	bs := int64(s.Geometry.BlockSize)
	owner := make([]FileSlot, len(s.Blocks))
	for i := range owner {
		owner[i] = -1
	}
	names := map[string]FileSlot{}
	for i := range s.Files {
		f := &s.Files[i]
		if f.IsEmpty() {
			if f.FirstBlock != NilRef || f.Size != 0 {
				return errors.Wrapf(ErrCorruptChain, "unused slot %d holds size=%d first=%d", i, f.Size, f.FirstBlock)
			}
			continue
		}
		name := f.FileName()
		if prev, ok := names[name]; ok {
			return errors.Wrapf(ErrCorruptChain, "name %q in slots %d and %d", name, prev, i)
		}
		names[name] = FileSlot(i)
		if (f.FirstBlock == NilRef) != (f.Size == 0) {
			return errors.Wrapf(ErrCorruptChain, "%q: size=%d first=%d", name, f.Size, f.FirstBlock)
		}
		chain, err := s.walk(f.FirstBlock)
		if err != nil {
			return errors.Wrapf(err, "%q", name)
		}
		if blocksFor(int64(f.Size), bs) > int64(len(chain)) {
			return errors.Wrapf(ErrCorruptChain, "%q: size %d needs more than %d blocks", name, f.Size, len(chain))
		}
		for _, ref := range chain {
			if owner[ref] != -1 {
				return errors.Wrapf(ErrCorruptChain, "block %d shared by slots %d and %d", ref, owner[ref], i)
			}
			owner[ref] = FileSlot(i)
		}
	}
	for i := range s.Blocks {
		if s.Blocks[i].Addr >= s.Geometry.MaxBlocks {
			return errors.Wrapf(ErrCorruptChain, "block %d has address %d outside the data region", i, s.Blocks[i].Addr)
		}
		if !s.Blocks[i].IsFree() && owner[i] == -1 {
			return errors.Wrapf(ErrCorruptChain, "block %d allocated but unreachable", i)
		}
	}
	return nil
}

// Check loads the image metadata and verifies it.
func (img *Image) Check() error {
	return img.withSnapshot("Check", false, func(tx *txn) error {
		return tx.snap.Verify()
	})
}

// Dump prints the file table and the block table.
func (s *Snapshot) Dump(w io.Writer) error {
	g := s.Geometry
	if _, err := fmt.Fprintf(w, "geometry: block_size=%d max_files=%d max_blocks=%d data_offset=%d\n",
		g.BlockSize, g.MaxFiles, g.MaxBlocks, g.DataOffset()); err != nil {
		return ioErr("dump", err)
	}
	fmt.Fprintln(w, "Files:")
	for i := range s.Files {
		f := &s.Files[i]
		if f.IsEmpty() {
			continue
		}
		fmt.Fprintf(w, "  [%d] name=%q size=%d first=%d\n", i, f.FileName(), f.Size, f.FirstBlock)
	}
	fmt.Fprintln(w, "Blocks:")
	for i := range s.Blocks {
		b := &s.Blocks[i]
		if _, err := fmt.Fprintf(w, "  [%d] %s addr=%d next=%d\n", i, b.State, b.Addr, b.Next); err != nil {
			return ioErr("dump", err)
		}
	}
	return nil
}
