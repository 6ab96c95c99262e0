// stratum converts a raster image into per-filament printable solids by
// layering translucent filaments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/stratum/internal/config"
	"github.com/Faultbox/stratum/internal/engine"
	"github.com/Faultbox/stratum/internal/logger"
	"github.com/Faultbox/stratum/internal/palette"
	"github.com/Faultbox/stratum/internal/raster"
)

func main() {
	// Global flags come before the subcommand; everything after it
	// belongs to the subcommand's own flag set.
	flag.Usage = printUsage
	config.ParseFlags()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	command := args[0]
	rest := args[1:]

	switch command {
	case "info":
		cmdInfo(cfg, rest)
	case "suggest":
		cmdSuggest(cfg, rest)
	case "preview":
		cmdPreview(cfg, rest)
	case "render":
		cmdRender(cfg, rest)
	case "export":
		cmdExport(cfg, rest)
	case "inspect":
		cmdInspect(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`stratum - filament color layering and geometry extraction

Usage:
  stratum [global flags] <command> [options]

Commands:
  info <stack.yaml>                       Show stack and shade table summary
  suggest <image>                         Propose a stack from image colors
  preview <image> -stack <stack.yaml>     Write the color preview raster
  render <image> -stack <stack.yaml>      Run extraction and report geometry
  export <image> -stack <stack.yaml>      Write per-filament STL solids
  inspect <image> -stack <stack.yaml> -x <px> -y <px>
                                          Report one pixel's layer makeup

Global flags (before the command):
  -config path     Config file
  -debug           Debug logging
  -resolution m    draft, low, medium, high, ultra
  -detail m        low, medium, high, ultra
  -out dir         Export output directory
  -size cm         Target size of the longest printed side
  -library path    Filament library file

Examples:
  stratum suggest photo.png -n 4 -write stack.yaml
  stratum preview photo.png -stack stack.yaml
  stratum -resolution draft export photo.png -stack stack.yaml -zip`)
}

// loadStack reads a stack description, resolving ids against the configured
// filament library when one is set.
func loadStack(cfg *config.Config, path string) (palette.Stack, error) {
	var lib *palette.Library
	if cfg.Stack.LibraryPath != "" {
		var err error
		lib, err = palette.LoadLibrary(cfg.Stack.LibraryPath)
		if err != nil {
			return palette.Stack{}, err
		}
	}
	return palette.LoadStack(path, lib)
}

// buildEngine wires an image, a stack file and the configuration into a
// ready engine.
func buildEngine(cfg *config.Config, imagePath, stackPath string) (*engine.Engine, palette.Stack, error) {
	stack, err := loadStack(cfg, stackPath)
	if err != nil {
		return nil, palette.Stack{}, err
	}

	img, format, err := raster.DecodeFile(imagePath)
	if err != nil {
		return nil, palette.Stack{}, err
	}
	logger.Debug("image decoded",
		zap.String("path", imagePath),
		zap.String("format", format))

	settings, err := engine.SettingsFromConfig(cfg)
	if err != nil {
		return nil, palette.Stack{}, err
	}

	eng := engine.New()
	eng.SetImage(img)
	if err := eng.SetStack(stack); err != nil {
		return nil, palette.Stack{}, err
	}
	if err := eng.SetSettings(settings); err != nil {
		return nil, palette.Stack{}, err
	}
	eng.OnProgress(func(stage string, done, total int) {
		logger.Debug("progress",
			zap.String("stage", stage),
			zap.Int("done", done),
			zap.Int("total", total))
	})
	return eng, stack, nil
}

func cmdInfo(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: stratum info <stack.yaml>")
		os.Exit(1)
	}

	stack, err := loadStack(cfg, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	settings, err := engine.SettingsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	table, err := palette.BuildTable(stack, palette.Options{
		LayerStride: settings.Resolution.Preset().LayerStride,
		DedupDelta:  settings.Detail.Preset().DedupDelta,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Stack:  %d filaments, %d base layers, %g mm per layer\n",
		len(stack.Filaments), stack.BaseLayers, stack.LayerHeight)
	fmt.Printf("Budget: %d mixing layers, %.2f mm tallest column\n",
		stack.Budget(), stack.HeightMM(stack.Budget()+stack.BaseLayers))
	fmt.Println()
	fmt.Println("Filaments (bottom to top):")
	for i, f := range stack.Filaments {
		fmt.Printf("  %d. %-20s %s  td=%.2f  max_layers=%d\n",
			i, f.Name, f.Color.Clamped().Hex(), f.Td, f.MaxLayers)
	}
	fmt.Println()
	fmt.Printf("Shade table: %d entries (%d raw, %d merged), stride %d\n",
		len(table.Entries), table.Raw, table.Dropped(), table.Stride)
}

func cmdSuggest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	count := fs.Int("n", 4, "Number of filaments to propose")
	method := fs.String("method", "kmeans", "Extraction method (kmeans, dominant)")
	write := fs.String("write", "", "Write the proposed stack to a YAML file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: stratum suggest <image> [-n count] [-method m] [-write stack.yaml]")
		os.Exit(1)
	}

	img, _, err := raster.DecodeFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	m, err := palette.ParseSuggestMethod(*method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	filaments, err := palette.Suggest(img, *count, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sf := palette.StackFile{
		BaseLayers:  cfg.Stack.BaseLayers,
		LayerHeight: cfg.Stack.LayerHeight,
	}
	for _, f := range filaments {
		sf.Filaments = append(sf.Filaments, palette.StackEntry{
			Name:      f.Name,
			Color:     f.Color.Clamped().Hex(),
			Td:        f.Td,
			MaxLayers: f.MaxLayers,
		})
	}

	data, err := yaml.Marshal(sf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *write != "" {
		if err := os.WriteFile(*write, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d filaments, darkest first)\n", *write, len(filaments))
		return
	}
	os.Stdout.Write(data)
}

func cmdPreview(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	stackPath := fs.String("stack", "", "Stack description file")
	out := fs.String("o", "", "Preview PNG path (defaults to the config value)")
	fs.Parse(args)

	if fs.NArg() < 1 || *stackPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: stratum preview <image> -stack <stack.yaml> [-o preview.png]")
		os.Exit(1)
	}

	eng, _, err := buildEngine(cfg, fs.Arg(0), *stackPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := eng.Preview(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if p.Warning != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", p.Warning.Recommendation)
	}

	path := *out
	if path == "" {
		path = cfg.Output.Preview
	}
	if err := raster.WritePNG(path, p.Raster); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Preview: %s (%dx%d, %d shades, %s)\n",
		path, p.Labels.W, p.Labels.H, p.TableEntries, p.Elapsed.Round(time.Millisecond))
}

func cmdRender(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	stackPath := fs.String("stack", "", "Stack description file")
	fs.Parse(args)

	if fs.NArg() < 1 || *stackPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: stratum render <image> -stack <stack.yaml>")
		os.Exit(1)
	}

	eng, stack, err := buildEngine(cfg, fs.Arg(0), *stackPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	r, err := eng.Render(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if r.Warning != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", r.Warning.Recommendation)
	}

	fmt.Printf("Raster:  %dx%d, %d shade entries\n", r.Labels.W, r.Labels.H, len(r.Table.Entries))
	fmt.Printf("Bands:   %d total\n", len(r.Bands))
	for i, n := range r.Report.Bands {
		fmt.Printf("  %d. %-20s %d bands\n", i, stack.Filaments[i].Name, n)
	}
	if n := len(r.Report.Degenerate); n > 0 {
		fmt.Fprintf(os.Stderr, "(%d degenerate polygons pruned)\n", n)
	}
	fmt.Printf("Render took %s\n", r.Elapsed.Round(time.Millisecond))
}

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	stackPath := fs.String("stack", "", "Stack description file")
	out := fs.String("o", "", "Output directory (defaults to the config value)")
	zipOut := fs.Bool("zip", cfg.Output.Zip, "Pack the artifacts into one archive")
	fs.Parse(args)

	if fs.NArg() < 1 || *stackPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: stratum export <image> -stack <stack.yaml> [-o dir] [-zip]")
		os.Exit(1)
	}

	eng, _, err := buildEngine(cfg, fs.Arg(0), *stackPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dir := *out
	if dir == "" {
		dir = cfg.Output.Dir
	}
	res, err := eng.Export(context.Background(), engine.ExportOptions{Dir: dir, Zip: *zipOut})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if res.Warning != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", res.Warning.Recommendation)
	}

	for _, p := range res.Paths {
		fmt.Println(p)
	}
	if n := len(res.MeshReport.Skipped); n > 0 {
		fmt.Fprintf(os.Stderr, "(%d bands skipped for degenerate geometry)\n", n)
	}
	for _, f := range res.MeshReport.EmptyFilaments {
		fmt.Fprintf(os.Stderr, "(filament %d has no geometry, no artifact written)\n", f)
	}
	fmt.Printf("Exported %d triangles in %s\n",
		res.MeshReport.Triangles, res.Elapsed.Round(time.Millisecond))
}

func cmdInspect(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	stackPath := fs.String("stack", "", "Stack description file")
	x := fs.Int("x", 0, "Pixel x in the working raster")
	y := fs.Int("y", 0, "Pixel y in the working raster")
	fs.Parse(args)

	if fs.NArg() < 1 || *stackPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: stratum inspect <image> -stack <stack.yaml> -x <px> -y <px>")
		os.Exit(1)
	}

	eng, stack, err := buildEngine(cfg, fs.Arg(0), *stackPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The assignment must exist before a point can be read.
	if _, err := eng.Preview(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	insp, err := eng.Inspect(*x, *y)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !insp.Material {
		fmt.Printf("(%d, %d): transparent, no material\n", insp.X, insp.Y)
		return
	}
	fmt.Printf("(%d, %d): %s  rgb(%d, %d, %d)\n",
		insp.X, insp.Y, insp.Composite, insp.R, insp.G, insp.B)
	fmt.Printf("Column: %d layers, %.2f mm\n", insp.TotalLayers, insp.HeightMM)
	for i, n := range insp.Counts {
		fmt.Printf("  %d. %-20s %d\n", i, stack.Filaments[i].Name, n)
	}
}
