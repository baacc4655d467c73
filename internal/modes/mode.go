// Package modes holds the registry of playground modes and the input slots
// each of them declares.
package modes

import "slices"

// Slot is a named data input a mode expects, rendered as one editor tab.
type Slot struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	EditorMode string   `yaml:"editorMode" json:"editorMode"`
	Aliases    []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Lookup returns the text inputs hold for the slot. The slot id takes
// precedence over its aliases, which are tried in declaration order.
func (s Slot) Lookup(inputs map[string]string) (string, bool) {
	if text, ok := inputs[s.ID]; ok {
		return text, true
	}
	for _, alias := range s.Aliases {
		if text, ok := inputs[alias]; ok {
			return text, true
		}
	}
	return "", false
}

// Mode selects an expression dialect together with the inputs it evaluates
// against.
type Mode struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	EditorMode string `yaml:"editorMode" json:"editorMode"`
	Default    bool   `yaml:"default,omitempty" json:"default,omitempty"`
	Tabs       []Slot `yaml:"tabs" json:"tabs"`
}

// SlotIDs returns the ids of the declared input slots in tab order.
func (m Mode) SlotIDs() []string {
	ids := make([]string, 0, len(m.Tabs))
	for _, slot := range m.Tabs {
		ids = append(ids, slot.ID)
	}
	return ids
}

// ResolveSlot finds the slot addressed by key, which may be the slot id or
// one of its aliases.
func (m Mode) ResolveSlot(key string) (Slot, bool) {
	for _, slot := range m.Tabs {
		if slot.ID == key || slices.Contains(slot.Aliases, key) {
			return slot, true
		}
	}
	return Slot{}, false
}

// InputTitle is the heading shown above the input editors.
func (m Mode) InputTitle() string {
	if len(m.Tabs) > 1 {
		return "Inputs: "
	}
	return "Input"
}

// CostLabel is the label shown next to the evaluation cost.
func (m Mode) CostLabel() string {
	if len(m.Tabs) > 1 {
		return "Total cost: "
	}
	return "Cost: "
}

func (m Mode) clone() Mode {
	m.Tabs = slices.Clone(m.Tabs)
	for i := range m.Tabs {
		m.Tabs[i].Aliases = slices.Clone(m.Tabs[i].Aliases)
	}
	return m
}
