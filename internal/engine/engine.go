// Package engine orchestrates the layering pipeline. It owns the session
// state (source image, filament stack, settings), the fingerprint-keyed
// stage caches, the synchronous preview fast path and the asynchronous
// render and export jobs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/stratum/internal/config"
	"github.com/Faultbox/stratum/internal/logger"
	"github.com/Faultbox/stratum/internal/meshing"
	"github.com/Faultbox/stratum/internal/palette"
	"github.com/Faultbox/stratum/internal/raster"
	"github.com/Faultbox/stratum/internal/regions"
	"github.com/Faultbox/stratum/pkg/stl"
)

// Precondition errors, checked before any stage runs.
var (
	ErrNoImage         = errors.New("no source image loaded")
	ErrTooFewFilaments = errors.New("stack needs at least two filaments")
	ErrNoAssignment    = errors.New("no assignment computed yet")
)

// searchCostCeiling bounds table entries times pixels before the
// nearest-shade scan turns sluggish enough to warn about.
const searchCostCeiling = 2_000_000_000

// zipArtifact is the archive name used when exports are bundled.
const zipArtifact = "solids.zip"

// Settings are the tunable pipeline parameters. The stack and image are
// session state; everything else that changes results lives here.
type Settings struct {
	Resolution config.ResolutionMode
	Detail     config.DetailLevel
	// AlphaPolicy decides how source transparency thins the print.
	AlphaPolicy raster.AlphaPolicy
	// AlphaThreshold is the alpha at and above which a pixel keeps its
	// full layer budget.
	AlphaThreshold uint8
	// TargetSizeCM is the printed length of the longest image side.
	TargetSizeCM float64
	// MaxTableEntries triggers a capacity warning above this bound.
	// Zero disables the bound.
	MaxTableEntries int
}

// DefaultSettings mirrors the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Resolution:      config.ResolutionMedium,
		Detail:          config.DetailMedium,
		AlphaPolicy:     raster.AlphaLinear,
		AlphaThreshold:  128,
		TargetSizeCM:    10,
		MaxTableEntries: 8000,
	}
}

// SettingsFromConfig parses the string-typed config fields into engine
// settings.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s := DefaultSettings()

	res, err := config.ParseResolution(cfg.Render.Resolution)
	if err != nil {
		return s, err
	}
	det, err := config.ParseDetail(cfg.Render.Detail)
	if err != nil {
		return s, err
	}
	policy, err := raster.ParseAlphaPolicy(cfg.Render.AlphaPolicy)
	if err != nil {
		return s, err
	}
	if cfg.Render.AlphaThreshold < 0 || cfg.Render.AlphaThreshold > 255 {
		return s, fmt.Errorf("alpha threshold must be in 0..255, got %d", cfg.Render.AlphaThreshold)
	}

	s.Resolution = res
	s.Detail = det
	s.AlphaPolicy = policy
	s.AlphaThreshold = uint8(cfg.Render.AlphaThreshold)
	s.MaxTableEntries = cfg.Render.MaxTableEntries
	s.TargetSizeCM = cfg.Stack.TargetSizeCM
	return s, s.validate()
}

func (s Settings) validate() error {
	if s.TargetSizeCM <= 0 {
		return fmt.Errorf("target size must be positive, got %g", s.TargetSizeCM)
	}
	if s.MaxTableEntries < 0 {
		return fmt.Errorf("max table entries must not be negative, got %d", s.MaxTableEntries)
	}
	return nil
}

// CapacityWarning recommends coarser settings when the requested
// combination would be slow. It rides on results and never fails a run.
type CapacityWarning struct {
	Entries        int
	Pixels         int
	Recommendation string
}

// Stats counts cache traffic across the engine's lifetime.
type Stats struct {
	TableBuilds int
	TableHits   int
	Assignments int
	AssignHits  int
}

// Engine is one editing session. All methods are safe for concurrent use.
type Engine struct {
	// mu guards the session inputs. gen bumps on every mutation so
	// in-flight jobs can tell their snapshot went stale.
	mu       sync.RWMutex
	img      *image.NRGBA
	stack    palette.Stack
	settings Settings
	progress ProgressFunc
	gen      uint64

	// cacheMu guards the stage caches. Each cache is a single slot keyed
	// by fingerprint and replaced wholesale; labelTable and labelStack
	// are the exact inputs the cached labels were computed from, so
	// inspection never pairs a newer table with older labels.
	cacheMu    sync.Mutex
	table      *palette.ShadeTable
	labels     *raster.LabelMap
	preview    *image.NRGBA
	labelTable *palette.ShadeTable
	labelStack palette.Stack
	stats      Stats

	// jobMu guards the async job bookkeeping in jobs.go.
	jobMu        sync.Mutex
	renderSerial uint64
	renderCancel context.CancelFunc
	exportSerial uint64
	exportCancel context.CancelFunc
}

// New creates an engine with default settings and no image or stack.
func New() *Engine {
	return &Engine{settings: DefaultSettings()}
}

// SetImage installs the source image. The image is converted to the
// working format immediately, so later mutation by the caller has no
// effect on the session.
func (e *Engine) SetImage(img image.Image) {
	nrgba := raster.ToNRGBA(img)
	e.mu.Lock()
	e.img = nrgba
	e.gen++
	e.mu.Unlock()
}

// SetStack installs the filament stack after validating it. The filament
// slice is copied.
func (e *Engine) SetStack(stack palette.Stack) error {
	if err := stack.Validate(); err != nil {
		return err
	}
	stack.Filaments = append([]palette.Filament(nil), stack.Filaments...)

	e.mu.Lock()
	e.stack = stack
	e.gen++
	e.mu.Unlock()
	return nil
}

// SetSettings installs new pipeline settings after validating them.
func (e *Engine) SetSettings(s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.settings = s
	e.gen++
	e.mu.Unlock()
	return nil
}

// OnProgress installs the progress callback. It fires from whichever
// goroutine runs the pipeline, between stages and between bands.
func (e *Engine) OnProgress(fn ProgressFunc) {
	e.mu.Lock()
	e.progress = fn
	e.mu.Unlock()
}

// Stats returns the cache counters.
func (e *Engine) Stats() Stats {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return e.stats
}

// snapshot captures the session inputs at request time. Computations run
// against the snapshot, never against live fields, so mutations during a
// run cannot mix configurations.
type snapshot struct {
	img      *image.NRGBA
	stack    palette.Stack
	settings Settings
	progress ProgressFunc
	gen      uint64
}

func (e *Engine) snapshot() (snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.img == nil {
		return snapshot{}, ErrNoImage
	}
	if len(e.stack.Filaments) < 2 {
		return snapshot{}, ErrTooFewFilaments
	}
	return snapshot{
		img:      e.img,
		stack:    e.stack,
		settings: e.settings,
		progress: e.progress,
		gen:      e.gen,
	}, nil
}

func (s snapshot) emit(stage string, done, total int) {
	if s.progress != nil {
		s.progress(stage, done, total)
	}
}

func (s snapshot) paletteOptions() palette.Options {
	return palette.Options{
		LayerStride: s.settings.Resolution.Preset().LayerStride,
		DedupDelta:  s.settings.Detail.Preset().DedupDelta,
	}
}

func (s snapshot) assignOptions() raster.AssignOptions {
	return raster.AssignOptions{
		Policy:         s.settings.AlphaPolicy,
		AlphaThreshold: s.settings.AlphaThreshold,
		Tolerance:      s.settings.Detail.Preset().Tolerance,
	}
}

// ensureTable returns the shade table for the snapshot, reusing the cached
// one when its fingerprint matches. Building happens outside the cache
// lock; the slot is written only after a successful build.
func (e *Engine) ensureTable(snap snapshot) (*palette.ShadeTable, error) {
	opts := snap.paletteOptions()
	want := palette.TableFingerprint(snap.stack, opts)

	e.cacheMu.Lock()
	if e.table != nil && e.table.Fingerprint == want {
		e.stats.TableHits++
		t := e.table
		e.cacheMu.Unlock()
		logger.Debug("shade table cache hit", zap.String("fingerprint", shortPrint(want)))
		return t, nil
	}
	e.cacheMu.Unlock()

	start := time.Now()
	table, err := palette.BuildTable(snap.stack, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("shade table built",
		zap.Int("entries", len(table.Entries)),
		zap.Int("raw", table.Raw),
		zap.Int("stride", table.Stride),
		zap.Duration("elapsed", time.Since(start)))

	e.cacheMu.Lock()
	e.table = table
	e.stats.TableBuilds++
	e.cacheMu.Unlock()
	return table, nil
}

// ensureLabels returns the label map and preview raster for the snapshot,
// reusing the cached pair when the assignment fingerprint matches.
func (e *Engine) ensureLabels(snap snapshot, table *palette.ShadeTable) (*raster.LabelMap, *image.NRGBA, error) {
	res := snap.settings.Resolution.Preset()
	working := raster.Downsample(snap.img, res.MaxDim, res.FastScale)
	opts := snap.assignOptions()
	want := raster.AssignFingerprint(raster.Hash(working), table.Fingerprint, opts)

	e.cacheMu.Lock()
	if e.labels != nil && e.labels.Fingerprint == want {
		// Same assignment, but the stack may differ in fields the
		// fingerprint ignores (layer height, names). Inspection state
		// follows the latest snapshot.
		e.labelTable = table
		e.labelStack = snap.stack
		e.stats.AssignHits++
		lm, pv := e.labels, e.preview
		e.cacheMu.Unlock()
		logger.Debug("assignment cache hit", zap.String("fingerprint", shortPrint(want)))
		return lm, pv, nil
	}
	e.cacheMu.Unlock()

	start := time.Now()
	lm, err := raster.Assign(working, table, opts)
	if err != nil {
		return nil, nil, err
	}
	pv := raster.Preview(lm, table)
	logger.Debug("pixels assigned",
		zap.Int("width", lm.W),
		zap.Int("height", lm.H),
		zap.Duration("elapsed", time.Since(start)))

	e.cacheMu.Lock()
	e.labels = lm
	e.preview = pv
	e.labelTable = table
	e.labelStack = snap.stack
	e.stats.Assignments++
	e.cacheMu.Unlock()
	return lm, pv, nil
}

// PreviewResult is the output of the interactive fast path.
type PreviewResult struct {
	// Raster shows each pixel's assigned composite color at working
	// resolution. Callers must not mutate it; it is cached.
	Raster       *image.NRGBA
	Labels       *raster.LabelMap
	TableEntries int
	Warning      *CapacityWarning
	Elapsed      time.Duration
}

// Preview runs the cheap path: shade table, assignment and the preview
// raster, all cache-backed. No geometry is touched and no progress fires,
// so it stays responsive next to a running render.
func (e *Engine) Preview(ctx context.Context) (*PreviewResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	table, err := e.ensureTable(snap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	labels, pv, err := e.ensureLabels(snap, table)
	if err != nil {
		return nil, err
	}

	return &PreviewResult{
		Raster:       pv,
		Labels:       labels,
		TableEntries: len(table.Entries),
		Warning:      capacityWarning(snap.settings, len(table.Entries), labels.W*labels.H),
		Elapsed:      time.Since(start),
	}, nil
}

// RenderResult is the output of a full render: everything the preview has
// plus the extracted polygon bands.
type RenderResult struct {
	Table   *palette.ShadeTable
	Labels  *raster.LabelMap
	Preview *image.NRGBA
	Bands   []regions.Band
	Report  *regions.Report
	Warning *CapacityWarning
	Elapsed time.Duration
}

// Render runs the pipeline through region extraction against a snapshot of
// the current session.
func (e *Engine) Render(ctx context.Context) (*RenderResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return e.render(ctx, snap)
}

func (e *Engine) render(ctx context.Context, snap snapshot) (*RenderResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := e.ensureTable(snap)
	if err != nil {
		return nil, err
	}
	snap.emit("shades", 1, 1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	labels, pv, err := e.ensureLabels(snap, table)
	if err != nil {
		return nil, err
	}
	snap.emit("assign", 1, 1)

	res := snap.settings.Resolution.Preset()
	det := snap.settings.Detail.Preset()
	bands, report, err := regions.Extract(ctx, labels, table, regions.Options{
		IsoLevel:    res.IsoLevel,
		SimplifyTol: res.SimplifyTol,
		MinArea:     det.MinArea,
		BaseLayers:  snap.stack.BaseLayers,
	})
	if err != nil {
		return nil, err
	}
	snap.emit("extract", 1, 1)

	if n := len(report.Degenerate); n > 0 {
		d := report.Degenerate[0]
		logger.Warn("degenerate polygons dropped",
			zap.Int("count", n),
			zap.Int("filament", d.Filament),
			zap.Int("layer", d.Z),
			zap.String("reason", d.Reason))
	}
	logger.Info("render complete",
		zap.Int("table_entries", len(table.Entries)),
		zap.Int("bands", len(bands)),
		zap.Duration("elapsed", time.Since(start)))

	return &RenderResult{
		Table:   table,
		Labels:  labels,
		Preview: pv,
		Bands:   bands,
		Report:  report,
		Warning: capacityWarning(snap.settings, len(table.Entries), labels.W*labels.H),
		Elapsed: time.Since(start),
	}, nil
}

// ExportOptions say where the artifacts go.
type ExportOptions struct {
	// Dir receives the artifacts; it is created if missing.
	Dir string
	// Zip packs all artifacts into one archive inside Dir instead of
	// loose files.
	Zip bool
}

// ExportResult is the output of an export run.
type ExportResult struct {
	// Paths lists the written files in print order; in zip mode it holds
	// the single archive path.
	Paths []string
	// Meshes are the per-filament solids, empty filaments included.
	Meshes       []*stl.Mesh
	MeshReport   *meshing.Report
	RegionReport *regions.Report
	Warning      *CapacityWarning
	Elapsed      time.Duration
}

// Export runs the full pipeline and writes one solid per filament, named
// so a sorted listing is the print order.
func (e *Engine) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return e.export(ctx, snap, opts)
}

func (e *Engine) export(ctx context.Context, snap snapshot, opts ExportOptions) (*ExportResult, error) {
	start := time.Now()

	r, err := e.render(ctx, snap)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(snap.stack.Filaments))
	for i, f := range snap.stack.Filaments {
		names[i] = f.Name
	}
	mopts := meshing.Options{
		LayerHeight:  snap.stack.LayerHeight,
		TargetSizeCM: snap.settings.TargetSizeCM,
		PixelWidth:   r.Labels.W,
		PixelHeight:  r.Labels.H,
	}
	if snap.progress != nil {
		mopts.Progress = func(done, total int) { snap.progress("mesh", done, total) }
	}

	meshes, mreport, err := meshing.Build(ctx, r.Bands, names, mopts)
	if err != nil {
		return nil, err
	}
	for _, s := range mreport.Skipped {
		logger.Warn("band skipped",
			zap.Int("filament", s.Filament),
			zap.Int("z_start", s.ZStart),
			zap.Int("z_end", s.ZEnd),
			zap.String("reason", s.Reason))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var paths []string
	if opts.Zip {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating export directory: %w", err)
		}
		archive := filepath.Join(opts.Dir, zipArtifact)
		if _, err := meshing.ExportZip(archive, meshes); err != nil {
			return nil, err
		}
		paths = []string{archive}
	} else {
		paths, err = meshing.ExportDir(opts.Dir, meshes)
		if err != nil {
			return nil, err
		}
	}
	snap.emit("write", 1, 1)

	logger.Info("export complete",
		zap.Int("artifacts", len(paths)),
		zap.Int("triangles", mreport.Triangles),
		zap.Duration("elapsed", time.Since(start)))

	return &ExportResult{
		Paths:        paths,
		Meshes:       meshes,
		MeshReport:   mreport,
		RegionReport: r.Report,
		Warning:      r.Warning,
		Elapsed:      time.Since(start),
	}, nil
}

// capacityWarning checks the requested combination against the practical
// bounds and recommends coarser settings when it exceeds them.
func capacityWarning(s Settings, entries, pixels int) *CapacityWarning {
	overEntries := s.MaxTableEntries > 0 && entries > s.MaxTableEntries
	cost := int64(entries) * int64(pixels)
	if !overEntries && cost <= searchCostCeiling {
		return nil
	}

	w := &CapacityWarning{Entries: entries, Pixels: pixels}
	if overEntries {
		w.Recommendation = fmt.Sprintf(
			"shade table has %d entries (bound %d); lower the detail level or use a coarser resolution",
			entries, s.MaxTableEntries)
	} else {
		w.Recommendation = fmt.Sprintf(
			"assignment cost %d exceeds the search budget; lower the resolution mode",
			cost)
	}
	logger.Warn("capacity warning",
		zap.Int("entries", entries),
		zap.Int("pixels", pixels),
		zap.String("recommendation", w.Recommendation))
	return w
}

// shortPrint trims a fingerprint for log lines.
func shortPrint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
