package meshing

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/stratum/pkg/stl"
)

// ExportDir writes one STL file per non-empty mesh into dir, creating it if
// needed. Mesh names carry the zero-padded stack position, so a name-sorted
// directory listing is the print order (bottom filament first). Returned
// paths preserve that order.
func ExportDir(dir string, meshes []*stl.Mesh) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	var paths []string
	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		path := filepath.Join(dir, m.Name+".stl")
		if err := stl.WriteFile(path, m); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ExportZip packs the same per-filament STL files into a single zip
// archive at path. Entry order matches print order.
func ExportZip(path string, meshes []*stl.Mesh) ([]string, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating export archive: %w", err)
	}

	zw := zip.NewWriter(f)
	var names []string
	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		name := m.Name + ".stl"
		w, err := zw.Create(name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("adding %s to archive: %w", name, err)
		}
		if err := stl.Write(w, m); err != nil {
			f.Close()
			return nil, err
		}
		names = append(names, name)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("finishing export archive: %w", err)
	}
	return names, f.Close()
}
