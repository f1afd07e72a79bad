package simfs

// ======== 镜像头部 ========

const HeaderMagicNum = uint32(0x53464d53) // "SMFS"
const HeaderVersion = uint16(1)

// 头部在磁盘上占用的固定字节数，Header 本身之后补零
const headerRecordSize = 32

// 文件表、块表单条记录的字节数，须与 restruct 计算的结构大小一致
const fileRecordSize = 20
const blockRecordSize = 9

// 文件名字段宽度，包含结尾的 '\0'
const NameFieldLen = 12

// 可用的最长文件名
const MaxNameLen = 10

type Header struct {
	MagicNum   uint32 `struct:"uint32"`
	Version    uint16 `struct:"uint16"`
	Reserved   uint16 `struct:"uint16"`
	BlockSize  uint32 `struct:"uint32"`
	MaxFiles   uint32 `struct:"uint32"`
	MaxBlocks  uint32 `struct:"uint32"`
	DataOffset uint64 `struct:"uint64"` // 数据区起始字节，按 BlockSize 对齐
}

// ======== 文件表与块表 ========

// BlockRef 是块表中的下标
type BlockRef int32

// FileSlot 是文件表中的下标
type FileSlot int32

// NilRef 表示链表结尾或文件尚无数据块
const NilRef = BlockRef(-1)

type BlockState uint8

const (
	BlockFree BlockState = iota
	BlockAllocated
)

func (s BlockState) String() string {
	switch s {
	case BlockFree:
		return "free"
	case BlockAllocated:
		return "allocated"
	default:
		return "unknown"
	}
}

type FileEntry struct {
	Name       [NameFieldLen]byte `struct:"[12]byte"`
	Size       uint32             `struct:"uint32"` // 文件逻辑长度
	FirstBlock BlockRef           `struct:"int32"`  // 链表首块，空文件为 NilRef
}

// FileName returns the name up to the first NUL.
func (f *FileEntry) FileName() string {
	for i, c := range f.Name {
		if c == 0 {
			return string(f.Name[:i])
		}
	}
	return string(f.Name[:])
}

func (f *FileEntry) IsEmpty() bool {
	return f.Name[0] == 0
}

func (f *FileEntry) setName(name string) {
	f.Name = [NameFieldLen]byte{}
	copy(f.Name[:MaxNameLen], name)
}

type BlockEntry struct {
	State BlockState `struct:"uint8"`
	Addr  uint32     `struct:"uint32"` // 数据区内的物理块号
	Next  BlockRef   `struct:"int32"`  // 链表中的下一块
}

func (b *BlockEntry) IsFree() bool {
	return b.State == BlockFree
}
