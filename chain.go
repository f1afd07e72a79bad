package simfs

import (
	"github.com/pkg/errors"
)

// span is one block's share of a logical byte range.
type span struct {
	Index int64 // 链表中的第几块
	Skip  int64 // 块内起始偏移
	Take  int64 // 本块读写的字节数
}

/*
spanOffsets 把逻辑区间 [start, start+length) 拆成逐块的 (skip, take)

	range:      |<------------------------->|
	blocks:  |<------->|<------->|<------->|<------->|
	            skip=start%bs    skip=0    skip=0, take=剩余

只有第一块可能带 skip，中间块整块读写，最后一块可能不满。
*/
func spanOffsets(start, length, blockSize int64) []span {
	if length <= 0 {
		return nil
	}
	var spans []span
	index := start / blockSize
	skip := start % blockSize
	remain := length
	for remain > 0 {
		take := Min(blockSize-skip, remain)
		spans = append(spans, span{Index: index, Skip: skip, Take: take})
		remain -= take
		index++
		skip = 0
	}
	return spans
}

// blocksFor is the chain length needed to cover end bytes.
func blocksFor(end, blockSize int64) int64 {
	return (end + blockSize - 1) / blockSize
}

// walk follows the chain starting at first. A chain longer than the block
// table, a reference out of range, a free entry or an address past the data
// region are reported as ErrCorruptChain.
func (s *Snapshot) walk(first BlockRef) ([]BlockRef, error) {
	var chain []BlockRef
	limit := len(s.Blocks)
	for at := first; at != NilRef; at = s.Blocks[at].Next {
		if at < 0 || int(at) >= limit {
			return nil, errors.Wrapf(ErrCorruptChain, "block ref %d out of range", at)
		}
		if len(chain) == limit {
			return nil, errors.Wrapf(ErrCorruptChain, "chain from %d longer than %d blocks", first, limit)
		}
		if s.Blocks[at].IsFree() {
			return nil, errors.Wrapf(ErrCorruptChain, "free block %d on chain from %d", at, first)
		}
		if s.Blocks[at].Addr >= s.Geometry.MaxBlocks {
			return nil, errors.Wrapf(ErrCorruptChain, "block %d has address %d outside the data region", at, s.Blocks[at].Addr)
		}
		chain = append(chain, at)
	}
	return chain, nil
}

// ensureCapacity grows the chain of slot until it covers end bytes and
// returns the whole chain. New blocks come from the first-fit allocator.
func (s *Snapshot) ensureCapacity(slot FileSlot, end int64) ([]BlockRef, error) {
	f := &s.Files[slot]
	chain, err := s.walk(f.FirstBlock)
	if err != nil {
		return nil, err
	}
	need := blocksFor(end, int64(s.Geometry.BlockSize))
	for int64(len(chain)) < need {
		ref, err := s.findFreeBlock()
		if err != nil {
			return nil, errors.Wrapf(err, "extend %q to %d blocks", f.FileName(), need)
		}
		s.allocate(ref)
		s.Blocks[ref].Next = NilRef
		if len(chain) == 0 {
			f.FirstBlock = ref
		} else {
			s.Blocks[chain[len(chain)-1]].Next = ref
		}
		chain = append(chain, ref)
	}
	return chain, nil
}
