// Package meshing extrudes polygon bands into watertight per-filament
// solids and writes them out as printable artifacts.
package meshing

import (
	"context"
	"fmt"
	"strings"

	"github.com/Faultbox/stratum/internal/regions"
	"github.com/Faultbox/stratum/pkg/stl"
)

// Options control the geometry of the extrusion.
type Options struct {
	// LayerHeight is the physical height of one printed layer, mm.
	LayerHeight float64
	// TargetSizeCM is the printed length of the longest image side.
	TargetSizeCM float64
	// PixelWidth and PixelHeight are the label-map dimensions the band
	// polygons were traced in.
	PixelWidth  int
	PixelHeight int
	// Progress, when set, is called after each band.
	Progress func(done, total int)
}

func (o Options) validate() error {
	if o.LayerHeight <= 0 {
		return fmt.Errorf("layer height must be positive, got %g", o.LayerHeight)
	}
	if o.TargetSizeCM <= 0 {
		return fmt.Errorf("target size must be positive, got %g", o.TargetSizeCM)
	}
	if o.PixelWidth < 1 || o.PixelHeight < 1 {
		return fmt.Errorf("pixel dimensions must be positive, got %dx%d", o.PixelWidth, o.PixelHeight)
	}
	return nil
}

// BandReport records one band that could not be turned into a valid solid
// and was skipped.
type BandReport struct {
	Filament int
	ZStart   int
	ZEnd     int
	Reason   string
}

// Report accumulates non-fatal findings of a build.
type Report struct {
	// Skipped lists bands dropped for degenerate or non-manifold
	// geometry. The rest of their filament's bands still export.
	Skipped []BandReport
	// EmptyFilaments lists filaments that ended up with no geometry and
	// therefore produce no artifact.
	EmptyFilaments []int
	// Triangles counts the faces across all meshes.
	Triangles int
}

// Build extrudes every band into its filament's mesh. One mesh is returned
// per stack position, named to preserve print order; filaments without any
// geometry stay empty and are listed in the report. A band whose prism
// fails manifold validation is skipped and reported without aborting the
// build. The context is checked between bands.
func Build(ctx context.Context, bands []regions.Band, names []string, opts Options) ([]*stl.Mesh, *Report, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	tf := newTransform(opts)
	meshes := make([]*stl.Mesh, len(names))
	for i, name := range names {
		meshes[i] = &stl.Mesh{Name: fmt.Sprintf("%03d_%s", i, sanitizeName(name))}
	}

	report := &Report{}
	for i, band := range bands {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if band.Filament < 0 || band.Filament >= len(meshes) {
			return nil, nil, fmt.Errorf("band filament %d outside the %d-filament stack", band.Filament, len(meshes))
		}

		tris, err := extrudeBand(band, tf)
		if err == nil {
			err = ValidateManifold(tris)
		}
		if err != nil {
			report.Skipped = append(report.Skipped, BandReport{
				Filament: band.Filament,
				ZStart:   band.ZStart,
				ZEnd:     band.ZEnd,
				Reason:   err.Error(),
			})
		} else {
			m := meshes[band.Filament]
			m.Triangles = append(m.Triangles, tris...)
			report.Triangles += len(tris)
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(bands))
		}
	}

	for i, m := range meshes {
		if m.IsEmpty() {
			report.EmptyFilaments = append(report.EmptyFilaments, i)
		}
	}
	return meshes, report, nil
}

// sanitizeName reduces a filament name to a filesystem-safe artifact stem.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "filament"
	}
	return b.String()
}
