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

package datacache

import (
	"encoding/json"
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/internal/memfile"
)

// Cache entries are a pair of files: a netCDF classic container
// holding the reflectivity array and a JSON sidecar holding the
// metadata. Neither format can carry executable payloads. The
// container keeps the historical .npz suffix so deployed store keys
// stay valid.

// maxEntryBytes caps the size of a container accepted for decoding.
const maxEntryBytes = 512 << 20

type lccGridJSON struct {
	Lat0 float64 `json:"lat_0"`
	Lon0 float64 `json:"lon_0"`
	DxM  float64 `json:"dx_m"`
	DyM  float64 `json:"dy_m"`
}

type projectionJSON struct {
	Kind    string              `json:"kind"`
	Proj4   string              `json:"proj4,omitempty"`
	Corners *iradar.WGS84Bounds `json:"corners,omitempty"`
	Grid    *lccGridJSON        `json:"grid,omitempty"`
}

// sidecar is the JSON metadata written next to every container.
// Timestamp is the 12-digit key form; CachedAt is unix seconds and
// drives expiry.
type sidecar struct {
	Source         string             `json:"source"`
	Timestamp      string             `json:"timestamp"`
	Product        string             `json:"product"`
	Extent         iradar.WGS84Bounds `json:"extent"`
	Projection     projectionJSON     `json:"projection"`
	Dimensions     [2]int             `json:"dimensions"`
	SourceMetadata iradar.FrameMeta   `json:"source_metadata"`
	CachedAt       int64              `json:"cached_at"`
}

func newSidecar(f *iradar.RadarFrame, cachedAt int64) sidecar {
	s := sidecar{
		Source:         f.Meta.Source,
		Timestamp:      iradar.Ts12(f.Timestamp),
		Product:        f.Meta.Product,
		Extent:         f.Bounds,
		Dimensions:     [2]int{f.Height, f.Width},
		SourceMetadata: f.Meta,
		CachedAt:       cachedAt,
	}
	s.Projection.Kind = f.Projection.Kind.String()
	switch f.Projection.Kind {
	case iradar.ProjectionProjected:
		s.Projection.Proj4 = f.Projection.Proj4
		corners := f.Projection.Corners
		s.Projection.Corners = &corners
	case iradar.ProjectionLCC:
		s.Projection.Proj4 = f.Projection.Proj4
		g := f.Projection.Grid
		s.Projection.Grid = &lccGridJSON{Lat0: g.Lat0, Lon0: g.Lon0, DxM: g.DxM, DyM: g.DyM}
	}
	return s
}

// frame reconstructs a radar frame from a sidecar and its decoded
// data array.
func (s sidecar) frame(data []float32) (*iradar.RadarFrame, error) {
	ts14, err := iradar.NormalizeTimestamp(s.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("datacache: sidecar timestamp: %v", err)
	}
	f := &iradar.RadarFrame{
		Data:      data,
		Height:    s.Dimensions[0],
		Width:     s.Dimensions[1],
		Bounds:    s.Extent,
		Meta:      s.SourceMetadata,
		Timestamp: ts14,
	}
	switch s.Projection.Kind {
	case "wgs84":
		f.Projection = iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84}
	case "projected":
		if s.Projection.Corners == nil {
			return nil, fmt.Errorf("datacache: projected sidecar without corners")
		}
		f.Projection = iradar.ProjectionInfo{
			Kind:    iradar.ProjectionProjected,
			Proj4:   s.Projection.Proj4,
			Corners: *s.Projection.Corners,
		}
	case "lcc":
		if s.Projection.Grid == nil {
			return nil, fmt.Errorf("datacache: lcc sidecar without grid parameters")
		}
		g := s.Projection.Grid
		f.Projection = iradar.ProjectionInfo{
			Kind:  iradar.ProjectionLCC,
			Proj4: s.Projection.Proj4,
			Grid:  iradar.LCCGridParams{Lat0: g.Lat0, Lon0: g.Lon0, DxM: g.DxM, DyM: g.DyM},
		}
	default:
		return nil, fmt.Errorf("datacache: unknown projection kind %q", s.Projection.Kind)
	}
	if len(data) != f.Height*f.Width {
		return nil, fmt.Errorf("datacache: data length %d does not match sidecar dimensions %dx%d",
			len(data), f.Height, f.Width)
	}
	return f, nil
}

func marshalSidecar(s sidecar) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("datacache: marshaling sidecar: %v", err)
	}
	return b, nil
}

func unmarshalSidecar(b []byte) (sidecar, error) {
	var s sidecar
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("datacache: parsing sidecar: %v", err)
	}
	if s.Dimensions[0] <= 0 || s.Dimensions[1] <= 0 ||
		s.Dimensions[0] > iradar.MaxGridDimension || s.Dimensions[1] > iradar.MaxGridDimension {
		return s, fmt.Errorf("datacache: sidecar dimensions %v out of range", s.Dimensions)
	}
	return s, nil
}

// encodeData serializes the reflectivity array as a netCDF classic
// container with a single float32 variable.
func encodeData(f *iradar.RadarFrame) ([]byte, error) {
	h := cdf.NewHeader([]string{"y", "x"}, []int{f.Height, f.Width})
	h.AddAttribute("", "comment", "iradar processed radar frame")
	h.AddAttribute("", "source", f.Meta.Source)
	h.AddAttribute("", "timestamp", f.Timestamp)
	h.AddVariable("data", []string{"y", "x"}, []float32{0})
	h.Define()

	mf := memfile.New(nil)
	cf, err := cdf.Create(mf, h)
	if err != nil {
		return nil, fmt.Errorf("datacache: creating container: %v", err)
	}
	w := cf.Writer("data", nil, nil)
	if _, err := w.Write(f.Data); err != nil {
		return nil, fmt.Errorf("datacache: writing data: %v", err)
	}
	return mf.Bytes(), nil
}

// decodeData reads the reflectivity array back out of a container.
func decodeData(b []byte) ([]float32, int, int, error) {
	if len(b) > maxEntryBytes {
		return nil, 0, 0, fmt.Errorf("datacache: container of %d bytes exceeds limit", len(b))
	}
	cf, err := cdf.Open(memfile.New(b))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("datacache: opening container: %v", err)
	}
	lengths := cf.Header.Lengths("data")
	if len(lengths) != 2 {
		return nil, 0, 0, fmt.Errorf("datacache: data variable has %d dimensions, want 2", len(lengths))
	}
	height, width := lengths[0], lengths[1]
	if height <= 0 || width <= 0 || height > iradar.MaxGridDimension || width > iradar.MaxGridDimension {
		return nil, 0, 0, fmt.Errorf("datacache: container dimensions %dx%d out of range", height, width)
	}
	data := make([]float32, height*width)
	r := cf.Reader("data", nil, nil)
	if _, err := r.Read(data); err != nil {
		return nil, 0, 0, fmt.Errorf("datacache: reading data: %v", err)
	}
	return data, height, width, nil
}
