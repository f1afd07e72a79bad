package simfs

// findFreeBlock returns the first free entry in table order. It does not
// change the entry; the caller allocates it.
func (s *Snapshot) findFreeBlock() (BlockRef, error) {
	for i := range s.Blocks {
		if s.Blocks[i].IsFree() {
			return BlockRef(i), nil
		}
	}
	return NilRef, ErrOutOfSpace
}

func (s *Snapshot) allocate(ref BlockRef) {
	s.Blocks[ref].State = BlockAllocated
}

func (s *Snapshot) free(ref BlockRef) {
	s.Blocks[ref].State = BlockFree
	s.Blocks[ref].Next = NilRef
}
