package transcode

import (
	"errors"
	"fmt"
)

// ErrDecode marks any failure to turn a file into samples.
var ErrDecode = errors.New("audio decode failed")

// DecodeError carries the offending path alongside the cause. It matches
// ErrDecode under errors.Is.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrDecode, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(path string, format string, args ...any) error {
	return &DecodeError{Path: path, Err: fmt.Errorf(format, args...)}
}
