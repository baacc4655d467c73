// Package catalog serves the bundled example expressions of every mode.
//
// Examples live in one YAML file per mode, examples/<mode>.yaml, as a list of
// flat maps: the name and category of the example, the expression under the
// mode id and every input under its slot id.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/invakid404/cel-playground/internal/modes"
)

const (
	// DefaultCategory holds the example loaded into a fresh editor. It is not
	// offered in the example list.
	DefaultCategory = "default"
	// BlankOption is the label of the pseudo example that clears the editors.
	BlankOption = "Blank"
	// DefaultCacheSize is the number of modes whose examples are kept parsed.
	DefaultCacheSize = 16

	nameKey     = "name"
	categoryKey = "category"
)

// ErrExampleNotFound is returned when a mode has no example with the given name.
var ErrExampleNotFound = errors.New("example not found")

//go:embed examples/*.yaml
var embedded embed.FS

// Example is one entry of the catalog.
type Example struct {
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Expression string            `json:"expression"`
	Inputs     map[string]string `json:"inputs"`
}

// DisplayName is the name shown in the example list, without the
// "category:" prefix some names carry.
func (e Example) DisplayName() string {
	return DisplayName(e.Name)
}

// DisplayName strips the "category:" prefix from an example name.
func DisplayName(name string) string {
	if _, rest, ok := strings.Cut(name, ":"); ok {
		return rest
	}
	return name
}

// Option is one selectable entry of the example list.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Group is a category of the example list.
type Group struct {
	Category string   `json:"category"`
	Options  []Option `json:"options"`
}

// Registry resolves modes for the catalog.
type Registry interface {
	Lookup(id string) (modes.Mode, error)
}

type exampleFile struct {
	Examples []map[string]string `yaml:"examples"`
}

// Catalog loads examples lazily, one mode at a time, and keeps the parsed
// lists in an LRU cache. Concurrent loads of the same mode are collapsed.
type Catalog struct {
	fsys     fs.FS
	registry Registry
	cache    *lru.Cache[string, []Example]
	group    singleflight.Group
	logger   *zap.Logger
}

// New creates a catalog reading examples/<mode>.yaml files from fsys.
func New(fsys fs.FS, registry Registry, cacheSize int, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, []Example](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create example cache: %w", err)
	}

	return &Catalog{
		fsys:     fsys,
		registry: registry,
		cache:    cache,
		logger:   logger,
	}, nil
}

// Embedded returns the catalog of examples shipped with the playground.
func Embedded(registry Registry, logger *zap.Logger) *Catalog {
	c, err := New(embedded, registry, DefaultCacheSize, logger)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Examples returns every example of the mode in file order. A mode without an
// example file has no examples. The returned examples are shared and must not
// be modified.
func (c *Catalog) Examples(modeID string) ([]Example, error) {
	if examples, ok := c.cache.Get(modeID); ok {
		return examples, nil
	}

	mode, err := c.registry.Lookup(modeID)
	if err != nil {
		return nil, err
	}

	v, err, _ := c.group.Do(mode.ID, func() (interface{}, error) {
		examples, err := c.load(mode)
		if err != nil {
			return nil, err
		}
		c.cache.Add(mode.ID, examples)
		return examples, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Example), nil
}

func (c *Catalog) load(mode modes.Mode) ([]Example, error) {
	path := "examples/" + mode.ID + ".yaml"
	data, err := fs.ReadFile(c.fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("no examples for mode", zap.String("mode", mode.ID))
		return []Example{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file exampleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	examples := make([]Example, 0, len(file.Examples))
	for i, entry := range file.Examples {
		name := entry[nameKey]
		if name == "" {
			return nil, fmt.Errorf("%s: example %d has no name", path, i)
		}
		category := entry[categoryKey]
		if category == "" {
			category = DefaultCategory
		}

		example := Example{
			Name:       name,
			Category:   category,
			Expression: entry[mode.ID],
			Inputs:     make(map[string]string, len(mode.Tabs)),
		}
		for _, slot := range mode.Tabs {
			example.Inputs[slot.ID], _ = slot.Lookup(entry)
		}
		examples = append(examples, example)
	}

	c.logger.Debug("loaded examples", zap.String("mode", mode.ID), zap.Int("count", len(examples)))
	return examples, nil
}

// Groups returns the example list of the mode: categories in order of first
// appearance, without the default category, followed by the Blank option.
func (c *Catalog) Groups(modeID string) ([]Group, error) {
	examples, err := c.Examples(modeID)
	if err != nil {
		return nil, err
	}

	var groups []Group
	index := make(map[string]int)
	for _, example := range examples {
		if example.Category == DefaultCategory {
			continue
		}
		i, ok := index[example.Category]
		if !ok {
			i = len(groups)
			index[example.Category] = i
			groups = append(groups, Group{Category: example.Category})
		}
		groups[i].Options = append(groups[i].Options, Option{
			Value: example.Name,
			Label: example.DisplayName(),
		})
	}

	return append(groups, Group{
		Options: []Option{{Value: DefaultCategory, Label: BlankOption}},
	}), nil
}

// Find returns the example with the given name. The value of the Blank option
// yields an example with every editor empty.
func (c *Catalog) Find(modeID, name string) (Example, error) {
	examples, err := c.Examples(modeID)
	if err != nil {
		return Example{}, err
	}
	if name == DefaultCategory {
		return c.blank(modeID)
	}
	for _, example := range examples {
		if example.Name == name {
			return example.clone(), nil
		}
	}
	return Example{}, fmt.Errorf("%w: %q in mode %q", ErrExampleNotFound, name, modeID)
}

// Default returns the example a fresh editor starts with: the first example
// of the default category, else the first example, else a blank one.
func (c *Catalog) Default(modeID string) (Example, error) {
	examples, err := c.Examples(modeID)
	if err != nil {
		return Example{}, err
	}
	for _, example := range examples {
		if example.Category == DefaultCategory {
			return example.clone(), nil
		}
	}
	if len(examples) > 0 {
		return examples[0].clone(), nil
	}
	return c.blank(modeID)
}

func (c *Catalog) blank(modeID string) (Example, error) {
	mode, err := c.registry.Lookup(modeID)
	if err != nil {
		return Example{}, err
	}
	example := Example{Name: BlankOption, Category: DefaultCategory, Inputs: make(map[string]string, len(mode.Tabs))}
	for _, slot := range mode.Tabs {
		example.Inputs[slot.ID] = ""
	}
	return example, nil
}

func (e Example) clone() Example {
	inputs := make(map[string]string, len(e.Inputs))
	for k, v := range e.Inputs {
		inputs[k] = v
	}
	e.Inputs = inputs
	return e
}
