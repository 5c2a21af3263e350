/*
Copyright © 2026 the iRadar authors.
This file is part of iRadar.

iRadar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

iRadar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with iRadar.  If not, see <http://www.gnu.org/licenses/>.
*/

package composite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/cloud"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// CompositeFolder is the output folder for fused overlays; the
// per-source folders are country names.
const CompositeFolder = "composite"

// Exporter writes PNGs and extent side-cars to the local output
// tree and mirrors them to the object store. Uploads are
// best-effort: a missing bucket or a failed put degrades to
// local-only with a warning.
type Exporter struct {
	Root          string
	Bucket        *blob.Bucket
	DisableUpload bool
	Log           logrus.FieldLogger
}

func (e *Exporter) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// PNGPath is the local path of a published overlay.
func (e *Exporter) PNGPath(folder string, unix int64) string {
	return filepath.Join(e.Root, folder, fmt.Sprintf("%d.png", unix))
}

// PNGExists reports whether an overlay was already published,
// checking the local tree first and then the object store.
func (e *Exporter) PNGExists(ctx context.Context, folder string, unix int64) bool {
	if _, err := os.Stat(e.PNGPath(folder, unix)); err == nil {
		return true
	}
	if e.Bucket == nil {
		return false
	}
	ok, err := cloud.BlobExists(ctx, e.Bucket, cloud.PNGKey(folder, unix))
	if err != nil {
		e.log().Warnf("checking store for %s/%d: %v", folder, unix, err)
		return false
	}
	return ok
}

func (e *Exporter) upload(ctx context.Context, key string, data []byte) {
	if e.Bucket == nil || e.DisableUpload {
		return
	}
	if err := cloud.WriteBlob(ctx, e.Bucket, key, data); err != nil {
		e.log().Warnf("uploading %s: %v", key, err)
	}
}

// WritePNG publishes one overlay locally and to the store,
// returning the local path.
func (e *Exporter) WritePNG(ctx context.Context, folder string, unix int64, png []byte) (string, error) {
	dir := filepath.Join(e.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("composite: creating %s: %v", dir, err)
	}
	path := e.PNGPath(folder, unix)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("composite: writing %s: %v", path, err)
	}
	e.upload(ctx, cloud.PNGKey(folder, unix), png)
	return path, nil
}

// ExtentMetadata is the header block of every extent side-car.
type ExtentMetadata struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Version          string `json:"version"`
	Generated        string `json:"generated"`
	CoordinateSystem string `json:"coordinate_system"`
}

// ExtentSource describes one source's (or the composite's)
// footprint.
type ExtentSource struct {
	Name        string                 `json:"name"`
	Country     string                 `json:"country"`
	Extent      iradar.WGS84Bounds     `json:"extent"`
	Projection  string                 `json:"projection"`
	GridSize    [2]int                 `json:"grid_size"`
	ResolutionM float64                `json:"resolution_m"`
	Mercator    *iradar.MercatorExtent `json:"mercator,omitempty"`
}

// ExtentIndex is the extent_index.json document.
type ExtentIndex struct {
	Metadata ExtentMetadata `json:"metadata"`
	Source   ExtentSource   `json:"source"`
}

// CombinedExtent is the radar_extent_combined.json document for the
// all-sources case.
type CombinedExtent struct {
	Metadata ExtentMetadata `json:"metadata"`
	Sources  []ExtentSource `json:"sources"`
}

func extentMetadata(name string) ExtentMetadata {
	return ExtentMetadata{
		Title:            fmt.Sprintf("%s radar extent", name),
		Description:      "Geographic footprint of the published radar overlays",
		Version:          iradar.Version,
		Generated:        time.Now().UTC().Format(time.RFC3339),
		CoordinateSystem: "EPSG:4326",
	}
}

// WriteExtentIndex publishes one source's extent side-car next to
// its PNGs and mirrors it to the store. folder is the country name
// or the composite folder.
func (e *Exporter) WriteExtentIndex(ctx context.Context, source, folder string, src ExtentSource) error {
	doc := ExtentIndex{Metadata: extentMetadata(src.Name), Source: src}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("composite: marshaling extent index: %v", err)
	}
	dir := filepath.Join(e.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("composite: creating %s: %v", dir, err)
	}
	path := filepath.Join(dir, "extent_index.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("composite: writing %s: %v", path, err)
	}
	e.upload(ctx, cloud.ExtentKey(source), b)
	return nil
}

// WriteCombinedExtent publishes the all-sources extent document at
// the output root.
func (e *Exporter) WriteCombinedExtent(ctx context.Context, srcs []ExtentSource) error {
	doc := CombinedExtent{Metadata: extentMetadata("combined"), Sources: srcs}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("composite: marshaling combined extent: %v", err)
	}
	if err := os.MkdirAll(e.Root, 0o755); err != nil {
		return fmt.Errorf("composite: creating %s: %v", e.Root, err)
	}
	path := filepath.Join(e.Root, "radar_extent_combined.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("composite: writing %s: %v", path, err)
	}
	return nil
}

// WriteMask publishes a coverage-mask PNG for a source (folder is
// its country name, or the composite folder).
func (e *Exporter) WriteMask(ctx context.Context, source, folder string, png []byte) (string, error) {
	dir := filepath.Join(e.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("composite: creating %s: %v", dir, err)
	}
	path := filepath.Join(dir, "coverage_mask.png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("composite: writing %s: %v", path, err)
	}
	e.upload(ctx, cloud.MaskKey(source), png)
	return path, nil
}
