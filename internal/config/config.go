// Package config handles engine configuration loading and management.
package config

// Config holds all engine settings.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	Stack   StackConfig   `yaml:"stack"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// RenderConfig holds color assignment and geometry extraction settings.
type RenderConfig struct {
	Resolution      string `yaml:"resolution"`   // draft, low, medium, high, ultra
	Detail          string `yaml:"detail"`       // low, medium, high, ultra
	AlphaPolicy     string `yaml:"alpha_policy"` // linear, step
	AlphaThreshold  int    `yaml:"alpha_threshold"`
	MaxTableEntries int    `yaml:"max_table_entries"`
}

// StackConfig holds default filament stack parameters.
type StackConfig struct {
	BaseLayers   int     `yaml:"base_layers"`
	LayerHeight  float64 `yaml:"layer_height"` // mm per printed layer
	TargetSizeCM float64 `yaml:"target_size_cm"`
	LibraryPath  string  `yaml:"library_path"`
}

// OutputConfig holds export artifact settings.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Preview string `yaml:"preview"`
	Zip     bool   `yaml:"zip"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Resolution:      "medium",
			Detail:          "medium",
			AlphaPolicy:     "linear",
			AlphaThreshold:  128,
			MaxTableEntries: 8000,
		},
		Stack: StackConfig{
			BaseLayers:   3,
			LayerHeight:  0.2,
			TargetSizeCM: 10,
			LibraryPath:  "",
		},
		Output: OutputConfig{
			Dir:     "export",
			Preview: "preview.png",
			Zip:     false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
