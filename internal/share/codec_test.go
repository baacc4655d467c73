package share

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invakid404/cel-playground/internal/modes"
)

func newCodec(opts ...Option) *Codec {
	return NewCodec(modes.Builtin(), opts...)
}

// payload builds content from a raw JSON payload, bypassing Encode.
func payload(t *testing.T, raw string) string {
	t.Helper()
	compressed, err := Compress(raw)
	require.NoError(t, err)
	return EncodeText(compressed)
}

func TestRoundTrip(t *testing.T) {
	codec := newCodec()

	texts := []string{
		"",
		"1 + 1",
		"object.spec.replicas <= 5\n&& object.metadata.name.startsWith('web')",
		"'héllo wörld 🌍' + \"日本語\"",
		"{\"nested\": {\"a\": [1, 2, 3]}}",
	}

	for _, m := range modes.Builtin().List() {
		for i, text := range texts {
			state := State{Mode: m.ID, Expression: text, Inputs: map[string]string{}}
			for j, slot := range m.Tabs {
				state.Inputs[slot.ID] = texts[(i+j+1)%len(texts)]
			}

			content, err := codec.Encode(state)
			require.NoError(t, err)

			decoded, err := codec.Decode(content)
			require.NoError(t, err, "mode %s text %d", m.ID, i)
			assert.True(t, state.Equal(decoded), "mode %s text %d: %+v != %+v", m.ID, i, state, decoded)
		}
	}
}

func TestEncodeTwice(t *testing.T) {
	codec := newCodec()
	state := State{Mode: "vap", Expression: "validations: []", Inputs: map[string]string{"dataOriginal": "a: 1"}}

	first, err := codec.Encode(state)
	require.NoError(t, err)
	second, err := codec.Encode(state)
	require.NoError(t, err)

	a, err := codec.Decode(first)
	require.NoError(t, err)
	b, err := codec.Decode(second)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.Equal(t, first, second)
}

func TestConcreteExample(t *testing.T) {
	codec := newCodec()
	state := State{Mode: "cel", Expression: "1 + 1", Inputs: map[string]string{"data": "{}"}}

	content, err := codec.Encode(state)
	require.NoError(t, err)

	decoded, err := codec.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestEmptyContent(t *testing.T) {
	codec := newCodec()

	content, err := codec.Encode(State{Mode: "cel", Expression: "", Inputs: map[string]string{}})
	require.NoError(t, err)

	decoded, err := codec.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, "cel", decoded.Mode)
	assert.Equal(t, "", decoded.Expression)
	assert.Equal(t, "", decoded.Input("data"))
}

func TestDecodeMalformed(t *testing.T) {
	codec := newCodec()

	_, err := codec.Decode("not-valid-base64!!")
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageText, de.Stage)
	assert.ErrorIs(t, err, ErrInvalidShareLink)

	random := make([]byte, 64)
	_, err = rand.Read(random)
	require.NoError(t, err)
	random[0] = 0x00 // never a gzip magic byte

	_, err = codec.Decode(EncodeText(random))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StageDecompress, de.Stage)
	assert.True(t, IsDecodeError(err))
}

func TestDecodeTruncatedStream(t *testing.T) {
	compressed, err := Compress(strings.Repeat("expression ", 100))
	require.NoError(t, err)

	_, err = newCodec().Decode(EncodeText(compressed[:len(compressed)/2]))
	assert.True(t, IsDecodeError(err))
}

func TestDecodeLegacy(t *testing.T) {
	codec := newCodec()

	decoded, err := codec.Decode(payload(t, `{"expression":"1+1","data":"{}"}`))
	require.NoError(t, err)
	assert.Equal(t, State{Mode: "cel", Expression: "1+1", Inputs: map[string]string{"data": "{}"}}, decoded)

	decoded, err = codec.Decode(payload(t, `{"expression":"true"}`))
	require.NoError(t, err)
	assert.Equal(t, "true", decoded.Expression)
	assert.Equal(t, "", decoded.Input("data"))
}

func TestDecodeAliasesAndExtras(t *testing.T) {
	codec := newCodec()

	decoded, err := codec.Decode(payload(t, `{"mode":"cel","cel":"x","dataInput":"x: 1","extra":42}`))
	require.NoError(t, err)
	assert.Equal(t, State{Mode: "cel", Expression: "x", Inputs: map[string]string{"data": "x: 1"}}, decoded)

	decoded, err = codec.Decode(payload(t, `{"mode":"vap","vap":"spec: {}","dataOriginal":null}`))
	require.NoError(t, err)
	assert.Equal(t, "spec: {}", decoded.Expression)
	assert.Len(t, decoded.Inputs, 5)
	assert.Equal(t, "", decoded.Input("dataOriginal"))
}

func TestDecodeInvalidShareLink(t *testing.T) {
	codec := newCodec()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `expression=1`},
		{name: "not an object", raw: `["cel"]`},
		{name: "null", raw: `null`},
		{name: "unknown mode", raw: `{"mode":"rego","rego":"allow"}`},
		{name: "empty mode", raw: `{"mode":"","cel":"1"}`},
		{name: "mode not a string", raw: `{"mode":1,"cel":"1"}`},
		{name: "no content", raw: `{"mode":"cel"}`},
		{name: "legacy without content", raw: `{"foo":"bar"}`},
		{name: "field not a string", raw: `{"mode":"cel","cel":["1"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(payload(t, tt.raw))
			assert.ErrorIs(t, err, ErrInvalidShareLink)
			assert.False(t, IsDecodeError(err))
		})
	}

	_, err := codec.Decode(payload(t, `{"mode":"rego","rego":"allow"}`))
	assert.ErrorIs(t, err, modes.ErrUnknownMode)
}

func TestDecodeSizeLimit(t *testing.T) {
	big := State{Mode: "cel", Expression: strings.Repeat("a", 4096), Inputs: map[string]string{}}

	content, err := newCodec().Encode(big)
	require.NoError(t, err)

	_, err = newCodec(WithMaxDecompressedSize(1024)).Decode(content)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, IsDecodeError(err))

	_, err = newCodec(WithMaxDecompressedSize(0)).Decode(content)
	assert.NoError(t, err)
}

func TestEncodeUnknownMode(t *testing.T) {
	_, err := newCodec().Encode(State{Mode: "rego"})
	assert.ErrorIs(t, err, modes.ErrUnknownMode)
}

func TestEncodeDropsUndeclaredInputs(t *testing.T) {
	codec := newCodec()
	content, err := codec.Encode(State{Mode: "cel", Expression: "1", Inputs: map[string]string{"dataInput": "a: 1", "dataOriginal": "b: 2"}})
	require.NoError(t, err)

	decoded, err := codec.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"data": "a: 1"}, decoded.Inputs)
}

func TestEncodePrefersSlotID(t *testing.T) {
	codec := newCodec()
	state := State{Mode: "cel", Expression: "x", Inputs: map[string]string{"data": "x: 1", "dataInput": "x: 2"}}

	// Map iteration order varies between runs, so repeat to catch a race
	for i := 0; i < 20; i++ {
		content, err := codec.Encode(state)
		require.NoError(t, err)

		decoded, err := codec.Decode(content)
		require.NoError(t, err)
		assert.Equal(t, "x: 1", decoded.Input("data"))
	}
}

func TestLink(t *testing.T) {
	codec := newCodec()
	state := State{Mode: "cel", Expression: "a + b", Inputs: map[string]string{"data": "a: 1\nb: 2"}}

	link, err := codec.Link("https://playcel.undistro.io/?theme=dark", state)
	require.NoError(t, err)
	assert.Contains(t, link, "theme=dark")

	content, ok := ContentFromURL(link)
	require.True(t, ok)

	decoded, err := codec.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)

	_, ok = ContentFromURL("https://playcel.undistro.io/")
	assert.False(t, ok)
}

func TestDecodeUnescapedPlus(t *testing.T) {
	codec := newCodec()
	state := State{Mode: "cel", Expression: strings.Repeat("x >= 1 ? 'ok' : 'no' ", 20), Inputs: map[string]string{"data": "x: 3"}}

	content, err := codec.Encode(state)
	require.NoError(t, err)

	decoded, err := codec.Decode(strings.ReplaceAll(content, "+", " "))
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}
