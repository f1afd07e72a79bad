package simfs

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

func JsonStringify(data interface{}) string {
	b, _ := json.MarshalIndent(data, "", "    ")
	return string(b)
}

type magicType interface{ uint32 | uint16 }

func CheckMagic[T magicType](data []byte, magic T) bool {
	magicKind := reflect.TypeOf(magic).Kind()
	if magicKind == reflect.Uint32 {
		if len(data) < 4 {
			return false
		}
		val := binary.LittleEndian.Uint32(data)
		return val == uint32(magic)
	}
	if magicKind == reflect.Uint16 {
		if len(data) < 2 {
			return false
		}
		val := binary.LittleEndian.Uint16(data)
		return val == uint16(magic)
	}
	return false
}

type Integer interface {
	int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64
}

type Float interface {
	float32 | float64
}

type Ordered interface {
	Integer | Float | ~string
}

func Min[T Ordered](nums ...T) T {
	if len(nums) == 0 {
		panic("Min of nothing")
	}
	min := nums[0]
	for _, v := range nums[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func Max[T Ordered](nums ...T) T {
	if len(nums) == 0 {
		panic("Max of nothing")
	}
	max := nums[0]
	for _, v := range nums[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

const O_RDONLY = 00
const O_WRONLY = 01
const O_RDWR = 02
const O_CREAT = 0100  /* not fcntl */
const O_EXCL = 0200   /* not fcntl */
const O_TRUNC = 01000 /* not fcntl */
const O_APPEND = 02000
const O_NONBLOCK = 04000
const O_SYNC = 010000

// DecodeFlags names the open(2) flags set in flags, for logging.
func DecodeFlags(flags uint32) []string {
	var ret []string
	if flags&(O_WRONLY|O_RDWR) == 0 {
		ret = append(ret, "O_RDONLY")
	}
	map_ := map[uint32]string{
		O_WRONLY:   "O_WRONLY",
		O_RDWR:     "O_RDWR",
		O_CREAT:    "O_CREAT",
		O_EXCL:     "O_EXCL",
		O_TRUNC:    "O_TRUNC",
		O_APPEND:   "O_APPEND",
		O_NONBLOCK: "O_NONBLOCK",
		O_SYNC:     "O_SYNC",
	}
	for k, v := range map_ {
		if flags&k != 0 {
			ret = append(ret, v)
		}
	}
	sort.Strings(ret)
	return ret
}

func Join[T any](a []T, sep string) string {
	var ret string
	for i, v := range a {
		if i != 0 {
			ret += sep
		}
		ret += fmt.Sprintf("%v", v)
	}
	return ret
}

func PreviewBuffer(buf []byte, length int) string {
	if len(buf) < length {
		length = len(buf)
	}
	str := string(buf[:length])
	strHex := hex.EncodeToString(buf[:length])
	return fmt.Sprintf("%s(%s)", str, strHex)
}
