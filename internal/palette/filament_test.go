package palette

import (
	"errors"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func testFilament(name string, c colorful.Color, td float64, maxLayers int) Filament {
	return Filament{ID: name, Name: name, Color: c, Td: td, MaxLayers: maxLayers}
}

func white(td float64, maxLayers int) Filament {
	return testFilament("white", colorful.Color{R: 1, G: 1, B: 1}, td, maxLayers)
}

func red(td float64, maxLayers int) Filament {
	return testFilament("red", colorful.Color{R: 1}, td, maxLayers)
}

func black(td float64, maxLayers int) Filament {
	return testFilament("black", colorful.Color{}, td, maxLayers)
}

func TestStackValidate(t *testing.T) {
	tests := []struct {
		name      string
		stack     Stack
		wantField string // empty means valid
	}{
		{
			name: "valid",
			stack: Stack{
				Filaments:   []Filament{white(0.05, 3), red(0.4, 5)},
				BaseLayers:  2,
				LayerHeight: 0.2,
			},
		},
		{
			name:      "empty stack",
			stack:     Stack{LayerHeight: 0.2},
			wantField: "filaments",
		},
		{
			name: "zero td",
			stack: Stack{
				Filaments:   []Filament{white(0, 3)},
				LayerHeight: 0.2,
			},
			wantField: "filaments[0].td",
		},
		{
			name: "td above one",
			stack: Stack{
				Filaments:   []Filament{white(0.5, 3), red(1.5, 5)},
				LayerHeight: 0.2,
			},
			wantField: "filaments[1].td",
		},
		{
			name: "td exactly one is allowed",
			stack: Stack{
				Filaments:   []Filament{white(1, 3)},
				LayerHeight: 0.2,
			},
		},
		{
			name: "zero max layers",
			stack: Stack{
				Filaments:   []Filament{white(0.5, 0)},
				LayerHeight: 0.2,
			},
			wantField: "filaments[0].max_layers",
		},
		{
			name: "zero layer height",
			stack: Stack{
				Filaments: []Filament{white(0.5, 3)},
			},
			wantField: "layer_height",
		},
		{
			name: "negative base layers",
			stack: Stack{
				Filaments:   []Filament{white(0.5, 3)},
				BaseLayers:  -1,
				LayerHeight: 0.2,
			},
			wantField: "base_layers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stack.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("ConfigError.Field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}
}

func TestStackBudget(t *testing.T) {
	s := Stack{
		Filaments:   []Filament{white(0.5, 3), red(0.5, 5)},
		LayerHeight: 0.2,
	}
	if got := s.Budget(); got != 8 {
		t.Errorf("Budget() = %d, want 8 (sum of max layers)", got)
	}

	s.MaxTotalLayers = 6
	if got := s.Budget(); got != 6 {
		t.Errorf("Budget() = %d, want explicit 6", got)
	}
}

func TestStackHeightMM(t *testing.T) {
	s := Stack{LayerHeight: 0.2}
	if got := s.HeightMM(13); got != 2.6 {
		t.Errorf("HeightMM(13) = %f, want 2.6", got)
	}
}
