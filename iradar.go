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

// Package iradar holds the canonical data model for a multi-source
// weather-radar compositing pipeline: the decoded radar frame, its
// projection description, geographic bounds, timestamp handling, the
// fixed composite reference grid, and the timestamp-matching and
// outage-detection logic that decides which frames are fused together.
package iradar

import (
	"fmt"
	"math"
)

// Version is the version of this program.
const Version = "1.4.0"

// Reflectivity values outside this range are clipped on decode.
// Finite frame pixels are always within it.
const (
	MinDBZ = -35
	MaxDBZ = 85
)

// MaxGridDimension is the largest accepted width or height for any
// source or destination grid. Larger values are treated as a
// configuration error before any data is read.
const MaxGridDimension = 10000

// WGS84Bounds is a geographic rectangle in EPSG:4326 degrees.
type WGS84Bounds struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// MercatorExtent is a rectangle in EPSG:3857 meters.
type MercatorExtent struct {
	Xmin float64 `json:"xmin"`
	Ymin float64 `json:"ymin"`
	Xmax float64 `json:"xmax"`
	Ymax float64 `json:"ymax"`
}

// ProjectionKind discriminates the projection variants a provider
// can deliver. There is no string dispatch at reprojection time;
// the reprojector switches on this tag.
type ProjectionKind int

const (
	// ProjectionWGS84 marks a pure latitude/longitude grid
	// (OMSZ netCDF, degenerate ODIM files).
	ProjectionWGS84 ProjectionKind = iota
	// ProjectionProjected marks a grid in a native projected CRS
	// described by a proj4 string, with WGS84 corner coordinates
	// (DWD stereographic, SHMU and CHMI mercator, IMGW).
	ProjectionProjected
	// ProjectionLCC marks the ARSO Lambert conformal conic grid.
	ProjectionLCC
)

func (k ProjectionKind) String() string {
	switch k {
	case ProjectionWGS84:
		return "wgs84"
	case ProjectionProjected:
		return "projected"
	case ProjectionLCC:
		return "lcc"
	}
	return fmt.Sprintf("ProjectionKind(%d)", int(k))
}

// LCCGridParams describes a Lambert conformal conic grid by its
// projection center and cell size; the grid is centered on the
// projection origin.
type LCCGridParams struct {
	Lat0, Lon0 float64 // projection origin, degrees
	DxM, DyM   float64 // cell size, meters
}

// ProjectionInfo fully determines how to build the source affine
// used for reprojection.
type ProjectionInfo struct {
	Kind    ProjectionKind
	Proj4   string        // Projected and LCC kinds
	Corners WGS84Bounds   // Projected kind: provider corner coordinates
	Grid    LCCGridParams // LCC kind
}

// FrameMeta carries provider bookkeeping for a decoded frame.
type FrameMeta struct {
	Product  string  `json:"product"`
	Quantity string  `json:"quantity"`
	Source   string  `json:"source"`
	Units    string  `json:"units"`
	Nodata   float64 `json:"nodata_sentinel"`
	Gain     float64 `json:"gain"`
	Offset   float64 `json:"offset"`
}

// RadarFrame is the canonical in-memory radar product: a row-major
// float32 reflectivity grid in dBZ with NaN as nodata.
type RadarFrame struct {
	Data          []float32
	Height, Width int
	Bounds        WGS84Bounds
	Projection    ProjectionInfo
	Meta          FrameMeta
	// Timestamp is the normalized 14-digit form (YYYYMMDDHHMMSS).
	Timestamp string
}

// Check verifies the frame invariants: shape matches the data length,
// all finite values are within the dBZ clipping range and the
// timestamp is normalized.
func (f *RadarFrame) Check() error {
	if f.Height <= 0 || f.Width <= 0 || f.Height > MaxGridDimension || f.Width > MaxGridDimension {
		return fmt.Errorf("iradar: invalid frame dimensions %dx%d", f.Height, f.Width)
	}
	if len(f.Data) != f.Height*f.Width {
		return fmt.Errorf("iradar: frame data length %d does not match dimensions %dx%d",
			len(f.Data), f.Height, f.Width)
	}
	if len(f.Timestamp) != 14 {
		return fmt.Errorf("iradar: frame timestamp %q is not 14 digits", f.Timestamp)
	}
	for _, v := range f.Data {
		if !math.IsNaN(float64(v)) && (v < MinDBZ || v > MaxDBZ) {
			return fmt.Errorf("iradar: frame value %g outside [%d, %d]", v, MinDBZ, MaxDBZ)
		}
	}
	return nil
}

// ClipDBZ clips v to the canonical reflectivity range.
func ClipDBZ(v float32) float32 {
	if v < MinDBZ {
		return MinDBZ
	}
	if v > MaxDBZ {
		return MaxDBZ
	}
	return v
}

// ExtentInfo is the result of a metadata-only decode: the geographic
// footprint and grid dimensions of a file without loading its data.
type ExtentInfo struct {
	Bounds        WGS84Bounds
	Height, Width int
	Projection    ProjectionInfo
}

// NativeExtent is the static footprint of a provider, used as a
// fallback and for extent side-car metadata.
type NativeExtent struct {
	Bounds        WGS84Bounds    `json:"extent"`
	Mercator      MercatorExtent `json:"mercator"`
	Height, Width int
	ResolutionM   float64 `json:"resolution_m"`
	Projection    string  `json:"projection"`
}
