package share

import (
	"errors"
	"fmt"
)

// ErrInvalidShareLink is returned when a share link cannot be turned back into
// a playground state. Every decode failure matches it.
var ErrInvalidShareLink = errors.New("invalid share link")

// ErrTooLarge is returned when a decompressed payload exceeds the configured
// size limit.
var ErrTooLarge = errors.New("payload too large")

// Stage names the step of the decode pipeline that failed.
type Stage string

const (
	StageText       Stage = "base64"
	StageDecompress Stage = "gzip"
)

// DecodeError reports malformed base64 or compressed data.
type DecodeError struct {
	Stage Stage
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes a DecodeError match ErrInvalidShareLink as well as its cause.
func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidShareLink
}

// IsDecodeError reports whether err stems from malformed transport data
// rather than from an incomplete payload.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
