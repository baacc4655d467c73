package eval

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
)

//go:generate go run ../../cmd/libsgen .

// ErrUnknownLibrary is returned when a library name is not in the registry
var ErrUnknownLibrary = errors.New("unknown library")

// DefaultLibraries are enabled when the configuration names none
var DefaultLibraries = []string{"bindings", "encoders", "lists", "math", "sets"}

// Library is a cel-go extension library that can be enabled by name
type Library struct {
	Description string
	Option      func() cel.EnvOption
}

// Libraries resolves library names into environment options
func Libraries(names ...string) ([]cel.EnvOption, error) {
	opts := make([]cel.EnvOption, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if seen[name] {
			continue
		}
		seen[name] = true

		lib, ok := extLibraries[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLibrary, name)
		}
		opts = append(opts, lib.Option())
	}
	return opts, nil
}

// LibraryNames returns the names of all known libraries, sorted
func LibraryNames() []string {
	names := make([]string, 0, len(extLibraries))
	for name := range extLibraries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DescribeLibrary returns the description of a library
func DescribeLibrary(name string) (string, bool) {
	lib, ok := extLibraries[name]
	return lib.Description, ok
}
