package modes

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ModeKey is the reserved share payload key that carries the mode id, so no
// mode or slot may use it.
const ModeKey = "mode"

var (
	// ErrUnknownMode is returned when a mode id is not registered.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrInvalidRegistry is returned when a mode definition fails validation.
	ErrInvalidRegistry = errors.New("invalid mode registry")
)

//go:embed modes.yaml
var builtinModes []byte

type registryFile struct {
	Modes []Mode `yaml:"modes"`
}

// Registry is an immutable, validated set of modes.
type Registry struct {
	modes []Mode
	byID  map[string]int
	def   int
}

// New validates the given modes and builds a registry from them. The first
// mode flagged as default is the default mode; without a flag it is the first
// mode.
func New(modes ...Mode) (*Registry, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("%w: no modes defined", ErrInvalidRegistry)
	}

	r := &Registry{
		modes: make([]Mode, 0, len(modes)),
		byID:  make(map[string]int, len(modes)),
	}

	defaults := 0
	for i, m := range modes {
		if err := validateMode(m); err != nil {
			return nil, err
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate mode %q", ErrInvalidRegistry, m.ID)
		}
		if m.Default {
			defaults++
			r.def = i
		}
		r.byID[m.ID] = i
		r.modes = append(r.modes, m.clone())
	}
	if defaults > 1 {
		return nil, fmt.Errorf("%w: %d modes flagged as default", ErrInvalidRegistry, defaults)
	}

	return r, nil
}

func validateMode(m Mode) error {
	if m.ID == "" {
		return fmt.Errorf("%w: mode with empty id", ErrInvalidRegistry)
	}
	if m.ID == ModeKey {
		return fmt.Errorf("%w: mode id %q is reserved", ErrInvalidRegistry, m.ID)
	}
	if len(m.Tabs) == 0 {
		return fmt.Errorf("%w: mode %q declares no input slots", ErrInvalidRegistry, m.ID)
	}

	seen := make(map[string]struct{})
	claim := func(key string) error {
		switch key {
		case "":
			return fmt.Errorf("%w: mode %q has a slot with empty id", ErrInvalidRegistry, m.ID)
		case ModeKey, m.ID:
			return fmt.Errorf("%w: mode %q slot key %q collides with a reserved key", ErrInvalidRegistry, m.ID, key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: mode %q declares slot key %q twice", ErrInvalidRegistry, m.ID, key)
		}
		seen[key] = struct{}{}
		return nil
	}

	for _, slot := range m.Tabs {
		if err := claim(slot.ID); err != nil {
			return err
		}
		for _, alias := range slot.Aliases {
			if err := claim(alias); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads a YAML mode registry.
func Load(r io.Reader) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	return New(file.Modes...)
}

// LoadFile reads a YAML mode registry from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

// Builtin returns the registry of modes shipped with the playground.
func Builtin() *Registry {
	r, err := Load(bytes.NewReader(builtinModes))
	if err != nil {
		panic(fmt.Sprintf("builtin modes: %v", err))
	}
	return r
}

// Lookup returns the mode registered under id.
func (r *Registry) Lookup(id string) (Mode, error) {
	i, ok := r.byID[id]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, id)
	}
	return r.modes[i].clone(), nil
}

// Has reports whether id is a registered mode.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Default returns the mode used when nothing else selects one.
func (r *Registry) Default() Mode {
	return r.modes[r.def].clone()
}

// List returns the registered modes in declaration order.
func (r *Registry) List() []Mode {
	out := make([]Mode, 0, len(r.modes))
	for _, m := range r.modes {
		out = append(out, m.clone())
	}
	return out
}
