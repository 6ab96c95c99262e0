package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagResolution = flag.String("resolution", "", "Resolution mode (draft, low, medium, high, ultra)")
	flagDetail     = flag.String("detail", "", "Detail level (low, medium, high, ultra)")
	flagOut        = flag.String("out", "", "Export output directory")
	flagSize       = flag.Float64("size", 0, "Target size of the longest side, cm")
	flagLibrary    = flag.String("library", "", "Filament library file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagResolution != "" {
		cfg.Render.Resolution = *flagResolution
	}
	if *flagDetail != "" {
		cfg.Render.Detail = *flagDetail
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagSize > 0 {
		cfg.Stack.TargetSizeCM = *flagSize
	}
	if *flagLibrary != "" {
		cfg.Stack.LibraryPath = *flagLibrary
	}
}
