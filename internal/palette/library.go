package palette

import (
	"fmt"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Defaults for fields a stack file may omit.
const (
	DefaultTd        = 0.5
	DefaultMaxLayers = 5
)

// LibraryEntry is one reusable filament definition in a library file.
type LibraryEntry struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Color     string  `yaml:"color"` // #rrggbb
	Td        float64 `yaml:"td"`
	MaxLayers int     `yaml:"max_layers"`
}

// Library is a named collection of filaments, loaded from YAML.
type Library struct {
	Filaments []LibraryEntry `yaml:"filaments"`
}

// LoadLibrary reads a filament library file.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filament library: %w", err)
	}
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parsing filament library %s: %w", path, err)
	}
	for i, e := range lib.Filaments {
		if e.ID == "" {
			return nil, &ConfigError{
				Field:  fmt.Sprintf("filaments[%d].id", i),
				Reason: "library entries need an id",
			}
		}
	}
	return &lib, nil
}

// Get resolves a library id to a Filament.
func (l *Library) Get(id string) (Filament, bool) {
	if l == nil {
		return Filament{}, false
	}
	for _, e := range l.Filaments {
		if e.ID == id {
			f, err := e.filament()
			if err != nil {
				return Filament{}, false
			}
			return f, true
		}
	}
	return Filament{}, false
}

func (e LibraryEntry) filament() (Filament, error) {
	c, err := parseHexColor(e.Color)
	if err != nil {
		return Filament{}, &ConfigError{
			Field:  fmt.Sprintf("filament %q color", e.ID),
			Reason: err.Error(),
		}
	}
	f := Filament{ID: e.ID, Name: e.Name, Color: c, Td: e.Td, MaxLayers: e.MaxLayers}
	if f.Name == "" {
		f.Name = e.ID
	}
	if f.MaxLayers == 0 {
		f.MaxLayers = DefaultMaxLayers
	}
	return f, nil
}

// StackEntry is one filament in a stack description: either a library
// reference (id only) or an inline definition.
type StackEntry struct {
	ID        string  `yaml:"id,omitempty"`
	Name      string  `yaml:"name,omitempty"`
	Color     string  `yaml:"color,omitempty"`
	Td        float64 `yaml:"td,omitempty"`
	MaxLayers int     `yaml:"max_layers,omitempty"`
}

// StackFile is the on-disk stack description. Filaments are listed bottom
// to top, matching printing order.
type StackFile struct {
	BaseLayers     int          `yaml:"base_layers"`
	LayerHeight    float64      `yaml:"layer_height"`
	MaxTotalLayers int          `yaml:"max_total_layers,omitempty"`
	Filaments      []StackEntry `yaml:"filaments"`
}

// LoadStack reads a stack description and resolves library references.
// lib may be nil when every entry is inline. Inline entries without an id
// get a deterministic project-local one; an omitted max_layers falls back
// to the default. Td has no fallback: zero fails validation, which keeps
// an accidentally opaque filament from building a bad table silently.
func LoadStack(path string, lib *Library) (Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stack{}, fmt.Errorf("reading stack file: %w", err)
	}
	var sf StackFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return Stack{}, fmt.Errorf("parsing stack file %s: %w", path, err)
	}
	return sf.Resolve(lib)
}

// Resolve converts the file form into a validated Stack.
func (sf StackFile) Resolve(lib *Library) (Stack, error) {
	stack := Stack{
		BaseLayers:     sf.BaseLayers,
		LayerHeight:    sf.LayerHeight,
		MaxTotalLayers: sf.MaxTotalLayers,
	}
	if stack.LayerHeight == 0 {
		stack.LayerHeight = 0.2
	}

	for i, e := range sf.Filaments {
		if e.Color == "" {
			// Library reference.
			if e.ID == "" {
				return Stack{}, &ConfigError{
					Field:  fmt.Sprintf("filaments[%d]", i),
					Reason: "entry needs an id or an inline color",
				}
			}
			f, ok := lib.Get(e.ID)
			if !ok {
				return Stack{}, &ConfigError{
					Field:  fmt.Sprintf("filaments[%d].id", i),
					Reason: fmt.Sprintf("%q not found in library", e.ID),
				}
			}
			// Per-instance overrides on top of the library values.
			if e.Td != 0 {
				f.Td = e.Td
			}
			if e.MaxLayers != 0 {
				f.MaxLayers = e.MaxLayers
			}
			if e.Name != "" {
				f.Name = e.Name
			}
			stack.Filaments = append(stack.Filaments, f)
			continue
		}

		c, err := parseHexColor(e.Color)
		if err != nil {
			return Stack{}, &ConfigError{
				Field:  fmt.Sprintf("filaments[%d].color", i),
				Reason: err.Error(),
			}
		}
		f := Filament{
			ID:        e.ID,
			Name:      e.Name,
			Color:     c,
			Td:        e.Td,
			MaxLayers: e.MaxLayers,
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("inline-%d", i)
		}
		if f.Name == "" {
			f.Name = f.ID
		}
		if f.MaxLayers == 0 {
			f.MaxLayers = DefaultMaxLayers
		}
		stack.Filaments = append(stack.Filaments, f)
	}

	if err := stack.Validate(); err != nil {
		return Stack{}, err
	}
	return stack, nil
}

// parseHexColor accepts #rrggbb with or without the leading hash.
func parseHexColor(s string) (colorful.Color, error) {
	if s == "" {
		return colorful.Color{}, fmt.Errorf("empty color")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return colorful.Hex(s)
}
