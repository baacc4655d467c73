package modes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	r := Builtin()

	def := r.Default()
	assert.Equal(t, "cel", def.ID)
	assert.Equal(t, []string{"data"}, def.SlotIDs())

	ids := make([]string, 0)
	for _, m := range r.List() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"cel", "vap", "webhooks"}, ids)

	vap, err := r.Lookup("vap")
	require.NoError(t, err)
	assert.Equal(t, []string{"dataOriginal", "dataUpdated", "dataNamespace", "dataRequest", "dataAuthorizer"}, vap.SlotIDs())

	webhooks, err := r.Lookup("webhooks")
	require.NoError(t, err)
	assert.Len(t, webhooks.Tabs, 4)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Builtin().Lookup("rego")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.False(t, Builtin().Has("rego"))
	assert.True(t, Builtin().Has("cel"))
}

func TestLookupReturnsCopy(t *testing.T) {
	r := Builtin()
	m, err := r.Lookup("cel")
	require.NoError(t, err)

	m.Tabs[0].ID = "mutated"
	m.Tabs[0].Aliases[0] = "mutated"

	again, err := r.Lookup("cel")
	require.NoError(t, err)
	assert.Equal(t, "data", again.Tabs[0].ID)
	assert.Equal(t, []string{"dataInput"}, again.Tabs[0].Aliases)
}

func TestResolveSlot(t *testing.T) {
	cel, err := Builtin().Lookup("cel")
	require.NoError(t, err)

	slot, ok := cel.ResolveSlot("data")
	require.True(t, ok)
	assert.Equal(t, "data", slot.ID)

	slot, ok = cel.ResolveSlot("dataInput")
	require.True(t, ok)
	assert.Equal(t, "data", slot.ID)

	_, ok = cel.ResolveSlot("dataOriginal")
	assert.False(t, ok)
}

func TestSlotLookup(t *testing.T) {
	slot := Slot{ID: "data", Aliases: []string{"dataInput", "input"}}

	text, ok := slot.Lookup(map[string]string{"dataInput": "alias", "data": "id", "input": "other"})
	require.True(t, ok)
	assert.Equal(t, "id", text)

	for i := 0; i < 20; i++ {
		text, ok = slot.Lookup(map[string]string{"input": "second", "dataInput": "first"})
		require.True(t, ok)
		assert.Equal(t, "first", text)
	}

	_, ok = slot.Lookup(map[string]string{"dataOriginal": "x"})
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	r := Builtin()
	cel, _ := r.Lookup("cel")
	vap, _ := r.Lookup("vap")

	assert.Equal(t, "Input", cel.InputTitle())
	assert.Equal(t, "Cost: ", cel.CostLabel())
	assert.Equal(t, "Inputs: ", vap.InputTitle())
	assert.Equal(t, "Total cost: ", vap.CostLabel())
}

func TestDefaultFallsBackToFirst(t *testing.T) {
	r, err := New(
		Mode{ID: "a", Tabs: []Slot{{ID: "in"}}},
		Mode{ID: "b", Tabs: []Slot{{ID: "in"}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Default().ID)
}

func TestValidation(t *testing.T) {
	slot := []Slot{{ID: "in"}}

	tests := []struct {
		name  string
		modes []Mode
	}{
		{name: "empty", modes: nil},
		{name: "empty id", modes: []Mode{{Tabs: slot}}},
		{name: "reserved id", modes: []Mode{{ID: "mode", Tabs: slot}}},
		{name: "no slots", modes: []Mode{{ID: "a"}}},
		{name: "duplicate mode", modes: []Mode{{ID: "a", Tabs: slot}, {ID: "a", Tabs: slot}}},
		{name: "slot collides with mode", modes: []Mode{{ID: "a", Tabs: []Slot{{ID: "a"}}}}},
		{name: "slot uses reserved key", modes: []Mode{{ID: "a", Tabs: []Slot{{ID: "mode"}}}}},
		{name: "duplicate slot", modes: []Mode{{ID: "a", Tabs: []Slot{{ID: "x"}, {ID: "x"}}}}},
		{name: "alias collides with slot", modes: []Mode{{ID: "a", Tabs: []Slot{{ID: "x"}, {ID: "y", Aliases: []string{"x"}}}}}},
		{name: "two defaults", modes: []Mode{{ID: "a", Default: true, Tabs: slot}, {ID: "b", Default: true, Tabs: slot}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.modes...)
			assert.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestLoad(t *testing.T) {
	r, err := Load(strings.NewReader(`
modes:
  - id: expr
    name: Expr
    tabs:
      - id: input
        name: Input
  - id: diff
    name: Diff
    default: true
    tabs:
      - id: left
      - id: right
`))
	require.NoError(t, err)
	assert.Equal(t, "diff", r.Default().ID)
	assert.Len(t, r.List(), 2)

	_, err = Load(strings.NewReader("modes: [{id: x, bogus: 1}]"))
	assert.ErrorIs(t, err, ErrInvalidRegistry)
}
