// Package palette models filament stacks and the composite colors they can
// produce. It generates the shade table that maps per-filament layer-count
// combinations to visible colors, and suggests starting palettes from image
// content.
package palette

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// ConfigError reports an invalid filament or stack parameter. It is returned
// before any table is built.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Filament describes one spool in the print stack.
type Filament struct {
	// ID is a stable identifier: a library id, or a project-local one.
	ID   string
	Name string
	// Color is the filament's own color at full opacity.
	Color colorful.Color
	// Td is the per-layer transmissivity in (0, 1]. One printed layer
	// lets a Td fraction of the underlying color through.
	Td float64
	// MaxLayers bounds how many layers of this filament a single pixel
	// column may use.
	MaxLayers int
}

// Stack is an ordered filament sequence, bottom to top. The order is the
// printing order.
type Stack struct {
	Filaments []Filament
	// BaseLayers is the number of solid layers of the bottom filament
	// printed before color mixing begins.
	BaseLayers int
	// LayerHeight is the physical height of one printed layer, mm.
	LayerHeight float64
	// MaxTotalLayers caps the sum of mixing layers across all filaments.
	// Zero means the sum of every filament's MaxLayers.
	MaxTotalLayers int
}

// Validate checks the stack parameters. It returns a ConfigError describing
// the first offending field.
func (s Stack) Validate() error {
	if len(s.Filaments) == 0 {
		return &ConfigError{Field: "filaments", Reason: "stack is empty"}
	}
	if s.LayerHeight <= 0 {
		return &ConfigError{
			Field:  "layer_height",
			Reason: fmt.Sprintf("must be positive, got %g", s.LayerHeight),
		}
	}
	if s.BaseLayers < 0 {
		return &ConfigError{
			Field:  "base_layers",
			Reason: fmt.Sprintf("must not be negative, got %d", s.BaseLayers),
		}
	}
	if s.MaxTotalLayers < 0 {
		return &ConfigError{
			Field:  "max_total_layers",
			Reason: fmt.Sprintf("must not be negative, got %d", s.MaxTotalLayers),
		}
	}
	for i, f := range s.Filaments {
		if f.Td <= 0 || f.Td > 1 {
			return &ConfigError{
				Field:  fmt.Sprintf("filaments[%d].td", i),
				Reason: fmt.Sprintf("must be in (0, 1], got %g", f.Td),
			}
		}
		if f.MaxLayers < 1 {
			return &ConfigError{
				Field:  fmt.Sprintf("filaments[%d].max_layers", i),
				Reason: fmt.Sprintf("must be at least 1, got %d", f.MaxLayers),
			}
		}
	}
	return nil
}

// Budget returns the effective total mixing-layer budget.
func (s Stack) Budget() int {
	if s.MaxTotalLayers > 0 {
		return s.MaxTotalLayers
	}
	sum := 0
	for _, f := range s.Filaments {
		sum += f.MaxLayers
	}
	return sum
}

// HeightMM converts a global layer count to physical millimeters.
func (s Stack) HeightMM(layers int) float64 {
	return float64(layers) * s.LayerHeight
}
