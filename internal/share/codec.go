// Package share turns playground state into the content parameter of a share
// link and back.
//
// A link carries gzip compressed JSON in standard base64. The JSON object holds
// the mode id under "mode", the expression under the mode id and every input
// under its slot id:
//
//	{"mode":"cel","cel":"1 + 1","data":"{}"}
//
// Links created before modes existed carry {"expression":..., "data":...} and
// decode into the default mode.
package share

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"

	"github.com/invakid404/cel-playground/internal/modes"
)

// QueryKey is the URL query parameter holding an encoded state.
const QueryKey = "content"

const (
	legacyExpressionKey = "expression"
	legacyDataKey       = "data"
)

// DefaultMaxDecompressedSize bounds decoded payloads unless overridden.
const DefaultMaxDecompressedSize = 1 << 20

// State is a snapshot of the editors for one mode.
type State struct {
	Mode       string            `json:"mode"`
	Expression string            `json:"expression"`
	Inputs     map[string]string `json:"inputs"`
}

// Input returns the text of the given slot, or "" when it is unset.
func (s State) Input(slot string) string {
	return s.Inputs[slot]
}

// Equal reports whether two states describe the same editor contents. Unset
// slots compare equal to empty ones.
func (s State) Equal(o State) bool {
	if s.Mode != o.Mode || s.Expression != o.Expression {
		return false
	}
	for k, v := range s.Inputs {
		if o.Inputs[k] != v {
			return false
		}
	}
	for k, v := range o.Inputs {
		if s.Inputs[k] != v {
			return false
		}
	}
	return true
}

// Registry resolves mode ids for the codec.
type Registry interface {
	Lookup(id string) (modes.Mode, error)
	Default() modes.Mode
}

// Codec encodes and decodes share link content against a mode registry.
type Codec struct {
	registry Registry
	maxSize  int64
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxDecompressedSize caps the size of a decompressed payload. Zero or a
// negative value disables the cap.
func WithMaxDecompressedSize(n int64) Option {
	return func(c *Codec) {
		c.maxSize = n
	}
}

// NewCodec creates a codec validating modes against registry.
func NewCodec(registry Registry, opts ...Option) *Codec {
	c := &Codec{
		registry: registry,
		maxSize:  DefaultMaxDecompressedSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode serializes state into the value of the content query parameter.
// Inputs are written under their canonical slot ids; keys that name no slot of
// the mode are dropped.
func (c *Codec) Encode(state State) (string, error) {
	mode, err := c.registry.Lookup(state.Mode)
	if err != nil {
		return "", fmt.Errorf("encode share link: %w", err)
	}

	payload := make(map[string]string, len(mode.Tabs)+2)
	payload[modes.ModeKey] = mode.ID
	payload[mode.ID] = state.Expression
	for _, slot := range mode.Tabs {
		text, _ := slot.Lookup(state.Inputs)
		payload[slot.ID] = text
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode share link: %w", err)
	}
	compressed, err := Compress(string(raw))
	if err != nil {
		return "", fmt.Errorf("encode share link: %w", err)
	}
	return EncodeText(compressed), nil
}

// Decode reconstructs a state from the content query parameter. Malformed
// transport data yields a *DecodeError; payloads that are incomplete or name
// an unregistered mode yield ErrInvalidShareLink. Both match
// ErrInvalidShareLink.
func (c *Codec) Decode(content string) (State, error) {
	compressed, err := DecodeText(content)
	if err != nil {
		return State{}, err
	}
	text, err := decompress(compressed, c.maxSize)
	if err != nil {
		return State{}, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return State{}, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidShareLink)
	}

	if _, ok := obj[modes.ModeKey]; !ok {
		return c.decodeLegacy(obj)
	}

	var id string
	if err := json.Unmarshal(obj[modes.ModeKey], &id); err != nil || id == "" {
		return State{}, fmt.Errorf("%w: mode is not a non-empty string", ErrInvalidShareLink)
	}
	mode, err := c.registry.Lookup(id)
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrInvalidShareLink, err)
	}

	state := State{Mode: mode.ID, Inputs: make(map[string]string, len(mode.Tabs))}
	found := false

	expr, ok, err := stringField(obj, mode.ID)
	if err != nil {
		return State{}, err
	}
	if !ok {
		expr, ok, err = stringField(obj, legacyExpressionKey)
		if err != nil {
			return State{}, err
		}
	}
	state.Expression = expr
	found = found || ok

	for _, slot := range mode.Tabs {
		text, ok, err := slotField(obj, slot)
		if err != nil {
			return State{}, err
		}
		state.Inputs[slot.ID] = text
		found = found || ok
	}

	if !found {
		return State{}, fmt.Errorf("%w: payload for mode %q has no content", ErrInvalidShareLink, mode.ID)
	}
	return state, nil
}

// decodeLegacy maps a payload without a mode onto the default mode: the
// expression and the first input slot.
func (c *Codec) decodeLegacy(obj map[string]json.RawMessage) (State, error) {
	mode := c.registry.Default()

	expr, hasExpr, err := stringField(obj, legacyExpressionKey)
	if err != nil {
		return State{}, err
	}
	data, hasData, err := stringField(obj, legacyDataKey)
	if err != nil {
		return State{}, err
	}
	if !hasExpr && !hasData {
		return State{}, fmt.Errorf("%w: payload has neither a mode nor an expression", ErrInvalidShareLink)
	}

	state := State{Mode: mode.ID, Expression: expr, Inputs: make(map[string]string, len(mode.Tabs))}
	for _, slot := range mode.Tabs {
		state.Inputs[slot.ID] = ""
	}
	state.Inputs[mode.Tabs[0].ID] = data
	return state, nil
}

func slotField(obj map[string]json.RawMessage, slot modes.Slot) (string, bool, error) {
	keys := append([]string{slot.ID}, slot.Aliases...)
	for _, key := range keys {
		text, ok, err := stringField(obj, key)
		if err != nil || ok {
			return text, ok, err
		}
	}
	return "", false, nil
}

// stringField reads obj[key] as a string. JSON null counts as absent.
func stringField(obj map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("%w: field %q is not a string", ErrInvalidShareLink, key)
	}
	return s, true, nil
}

// Link returns base with the content parameter set to the encoded state.
// Other query parameters of base are kept.
func (c *Codec) Link(base string, state State) (string, error) {
	content, err := c.Encode(state)
	if err != nil {
		return "", err
	}
	return WithContent(base, content)
}

// WithContent returns base with the content parameter set to content.
func WithContent(base, content string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(QueryKey, content)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ContentFromURL extracts the content parameter from a share link.
func ContentFromURL(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	content := u.Query().Get(QueryKey)
	return content, content != ""
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	s.Inputs = maps.Clone(s.Inputs)
	return s
}
