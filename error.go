package simfs

import (
	"github.com/pkg/errors"
)

type FsErr struct {
	Code int
	Msg  string
}

func (e FsErr) Error() string {
	return e.Msg
}
func (e FsErr) GetCode() int {
	return e.Code
}

var ErrInvalidName = NewFsErr(1, "invalid name")
var ErrAlreadyExists = NewFsErr(2, "file already exists")
var ErrOutOfResources = NewFsErr(3, "not enough resources")
var ErrNotFound = NewFsErr(4, "file does not exist")
var ErrEmptyFile = NewFsErr(5, "file is empty")
var ErrInvalidRange = NewFsErr(6, "incorrect start and length combination")
var ErrOutOfSpace = NewFsErr(7, "no available blocks")
var ErrInput = NewFsErr(8, "input failed")
var ErrIO = NewFsErr(9, "i/o error")
var ErrCorruptChain = NewFsErr(10, "corrupt block chain")
var ErrBadImage = NewFsErr(11, "not a simfs image")
var ErrBadGeometry = NewFsErr(12, "invalid geometry")

func NewFsErr(code int, msg string) FsErr {
	return FsErr{
		Code: code,
		Msg:  msg,
	}
}

// IOError wraps a failure of the underlying image file. It matches ErrIO.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func ioErr(op string, err error) error {
	return errors.WithStack(&IOError{Op: op, Err: err})
}

// ErrorCode extracts the FsErr code carried by err, or 0.
func ErrorCode(err error) int {
	var fe FsErr
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, ErrIO) {
		return ErrIO.Code
	}
	return 0
}
