package simfs

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Snapshot is the in-memory copy of the file table and block table. It is
// loaded whole at the start of an operation and, for mutating operations,
// saved whole before any block data is touched.
type Snapshot struct {
	Geometry Geometry
	Files    []FileEntry
	Blocks   []BlockEntry
}

func newSnapshot(g Geometry) *Snapshot {
	s := &Snapshot{
		Geometry: g,
		Files:    make([]FileEntry, g.MaxFiles),
		Blocks:   make([]BlockEntry, g.MaxBlocks),
	}
	for i := range s.Files {
		s.Files[i].FirstBlock = NilRef
	}
	for i := range s.Blocks {
		s.Blocks[i] = BlockEntry{State: BlockFree, Addr: uint32(i), Next: NilRef}
	}
	return s
}

// loadHeader reads and checks the image header.
func loadHeader(dev BlockDevice) (Geometry, error) {
	hdrbytes := make([]byte, headerRecordSize)
	if err := dev.Read(0, hdrbytes); err != nil {
		return Geometry{}, err
	}
	// check magic number
	if !CheckMagic(hdrbytes[:4], HeaderMagicNum) {
		return Geometry{}, ErrBadImage
	}
	var hdr Header
	if err := StructOf(hdrbytes, &hdr); err != nil {
		return Geometry{}, errors.Wrap(ErrBadImage, err.Error())
	}
	if hdr.Version != HeaderVersion {
		return Geometry{}, errors.Wrapf(ErrBadImage, "unsupported version %d", hdr.Version)
	}
	return geometryOf(&hdr)
}

func writeHeader(dev BlockDevice, g Geometry) error {
	hdrbytes, err := BytesOf(g.header())
	if err != nil {
		return err
	}
	return dev.Write(0, Pad(hdrbytes, headerRecordSize))
}

// loadSnapshot reads both tables in full.
func loadSnapshot(dev BlockDevice, g Geometry) (*Snapshot, error) {
	filebytes := make([]byte, int64(g.MaxFiles)*fileRecordSize)
	if err := dev.Read(g.filesOffset(), filebytes); err != nil {
		return nil, errors.Wrap(err, "could not read file entries")
	}
	files, err := unpackRecords[FileEntry](filebytes, fileRecordSize, int(g.MaxFiles))
	if err != nil {
		return nil, err
	}
	blockbytes := make([]byte, int64(g.MaxBlocks)*blockRecordSize)
	if err := dev.Read(g.blocksOffset(), blockbytes); err != nil {
		return nil, errors.Wrap(err, "could not read block table")
	}
	blocks, err := unpackRecords[BlockEntry](blockbytes, blockRecordSize, int(g.MaxBlocks))
	if err != nil {
		return nil, err
	}
	logrus.Debugf("loaded snapshot files=%d blocks=%d", len(files), len(blocks))
	return &Snapshot{Geometry: g, Files: files, Blocks: blocks}, nil
}

// save writes both tables back at their fixed offsets. A failure part way
// through can leave the image inconsistent.
func (s *Snapshot) save(dev BlockDevice) error {
	filebytes, err := packRecords(s.Files, fileRecordSize)
	if err != nil {
		return err
	}
	if err := dev.Write(s.Geometry.filesOffset(), filebytes); err != nil {
		return errors.Wrap(err, "could not write file entries")
	}
	blockbytes, err := packRecords(s.Blocks, blockRecordSize)
	if err != nil {
		return err
	}
	if err := dev.Write(s.Geometry.blocksOffset(), blockbytes); err != nil {
		return errors.Wrap(err, "could not write block table")
	}
	logrus.Debugf("saved snapshot files=%d blocks=%d", len(s.Files), len(s.Blocks))
	return nil
}

// FreeBlocks counts block table entries currently free.
func (s *Snapshot) FreeBlocks() int {
	n := 0
	for i := range s.Blocks {
		if s.Blocks[i].IsFree() {
			n++
		}
	}
	return n
}

// UsedFiles counts non-empty directory slots.
func (s *Snapshot) UsedFiles() int {
	n := 0
	for i := range s.Files {
		if !s.Files[i].IsEmpty() {
			n++
		}
	}
	return n
}
