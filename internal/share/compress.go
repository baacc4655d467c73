package share

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
)

// Compress gzips text. The gzip header carries no name or timestamp, so equal
// inputs produce equal outputs.
func Compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(zw, text); err != nil {
		zw.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress is the inverse of Compress.
func Decompress(data []byte) (string, error) {
	return decompress(data, 0)
}

// decompress inflates data, failing once the output grows past limit bytes.
// A limit of zero disables the check.
func decompress(data []byte, limit int64) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", &DecodeError{Stage: StageDecompress, Err: err}
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return "", &DecodeError{Stage: StageDecompress, Err: err}
	}
	if limit > 0 && int64(len(out)) > limit {
		return "", &DecodeError{Stage: StageDecompress, Err: fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)}
	}
	if !utf8.Valid(out) {
		return "", &DecodeError{Stage: StageDecompress, Err: fmt.Errorf("payload is not valid UTF-8")}
	}

	return string(out), nil
}
