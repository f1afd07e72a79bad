package simfs

import (
	"encoding/binary"
	"reflect"

	"github.com/go-restruct/restruct"
	"github.com/pkg/errors"
)

func BytesOf(data interface{}) ([]byte, error) {
	// 确保 data 是指针结构
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Ptr {
		return nil, errors.New("data must be a pointer")
	}
	return restruct.Pack(binary.LittleEndian, data)
}

func StructOf(data []byte, v interface{}) error {
	return restruct.Unpack(data, binary.LittleEndian, v)
}

func SizeOf(data interface{}) (int, error) {
	return restruct.SizeOf(data)
}

func Pad(data []byte, size int) []byte {
	if len(data) == size {
		return data
	}
	if len(data) > size {
		panic("data is too long")
	}
	return append(data, make([]byte, size-len(data))...)
}

// packRecords lays out recs back to back, each padded to recSize bytes.
func packRecords[T any](recs []T, recSize int) ([]byte, error) {
	buf := make([]byte, 0, len(recs)*recSize)
	for i := range recs {
		b, err := BytesOf(&recs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "pack record %d", i)
		}
		buf = append(buf, Pad(b, recSize)...)
	}
	return buf, nil
}

// unpackRecords is the inverse of packRecords.
func unpackRecords[T any](data []byte, recSize int, count int) ([]T, error) {
	if len(data) < recSize*count {
		return nil, errors.Wrapf(ErrBadImage, "table needs %d bytes, have %d", recSize*count, len(data))
	}
	recs := make([]T, count)
	for i := 0; i < count; i++ {
		if err := StructOf(data[i*recSize:(i+1)*recSize], &recs[i]); err != nil {
			return nil, errors.Wrapf(err, "unpack record %d", i)
		}
	}
	return recs, nil
}
