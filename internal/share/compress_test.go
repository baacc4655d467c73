package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "line one\nline two\n", "ünïcødé ✓", string(make([]byte, 10000))} {
		compressed, err := Compress(s)
		require.NoError(t, err)

		out, err := Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, s, out)
	}
}

func TestCompressDeterministic(t *testing.T) {
	a, err := Compress("self.size() > 0")
	require.NoError(t, err)
	b, err := Compress("self.size() > 0")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecompressInvalid(t *testing.T) {
	_, err := Decompress([]byte("plain text"))
	assert.True(t, IsDecodeError(err))

	_, err = Decompress(nil)
	assert.True(t, IsDecodeError(err))
}

func TestDecompressInvalidUTF8(t *testing.T) {
	compressed, err := Compress(string([]byte{0xff, 0xfe, 0xfd}))
	require.NoError(t, err)

	_, err = Decompress(compressed)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageDecompress, de.Stage)
}

func TestTextRoundTrip(t *testing.T) {
	for _, b := range [][]byte{nil, {0}, {0xfb, 0xff, 0xbf}, []byte("hello world")} {
		decoded, err := DecodeText(EncodeText(b))
		require.NoError(t, err)
		assert.Equal(t, len(b), len(decoded))
		if len(b) > 0 {
			assert.Equal(t, b, decoded)
		}
	}
}

func TestDecodeTextURLAlphabet(t *testing.T) {
	decoded, err := DecodeText("-_-_")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfb, 0xff, 0xbf}, decoded)
}

func TestDecodeTextInvalid(t *testing.T) {
	for _, s := range []string{"not-valid-base64!!", "abc", "a===", "Zm9v$", "Zm9v\nYmFy", "Zm9v\r\nYmFy"} {
		_, err := DecodeText(s)
		var de *DecodeError
		require.ErrorAs(t, err, &de, s)
		assert.Equal(t, StageText, de.Stage)
		assert.ErrorIs(t, err, ErrInvalidShareLink)
	}
}
