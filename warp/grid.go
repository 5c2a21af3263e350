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

package warp

import (
	"fmt"
	"math"

	"github.com/imeteo/iradar"
	"gonum.org/v1/gonum/floats"
)

// TransformGrid maps every destination Web-Mercator pixel to a
// source pixel. Index arrays are int16 by contract, keeping one
// grid at about four bytes per destination pixel; -1 marks a
// destination pixel outside the source footprint.
type TransformGrid struct {
	Source  string
	Version string

	// Rows and Cols have length DstH*DstW, row-major.
	Rows, Cols []int16

	DstH, DstW int
	SrcH, SrcW int

	// Mercator is the destination extent in EPSG:3857, derived
	// from the destination affine.
	Mercator    iradar.MercatorExtent
	ResolutionM float64

	// DstBounds are the WGS84 bounds of the destination grid,
	// derived from the destination affine. These are what the
	// PNG side-cars publish; they are never recomputed
	// independently.
	DstBounds iradar.WGS84Bounds
}

// DstAffine reconstructs the destination geotransform.
func (g *TransformGrid) DstAffine() Affine {
	return Affine{
		X0: g.Mercator.Xmin, Dx: g.ResolutionM,
		Y0: g.Mercator.Ymax, Dy: -g.ResolutionM,
	}
}

// Check verifies the grid invariants.
func (g *TransformGrid) Check() error {
	if len(g.Rows) != g.DstH*g.DstW || len(g.Cols) != len(g.Rows) {
		return fmt.Errorf("warp: index arrays of length %d, %d do not match destination %dx%d",
			len(g.Rows), len(g.Cols), g.DstH, g.DstW)
	}
	for i := range g.Rows {
		r, c := g.Rows[i], g.Cols[i]
		if r == -1 && c == -1 {
			continue
		}
		if r < 0 || int(r) >= g.SrcH || c < 0 || int(c) >= g.SrcW {
			return fmt.Errorf("warp: index (%d,%d) outside source %dx%d", r, c, g.SrcH, g.SrcW)
		}
	}
	return nil
}

// defaultTransformSamples is the lattice density used to estimate
// the destination extent, matching the suggested-warp-output rule.
const defaultTransformSamples = 21

// DefaultTransform computes the destination affine and dimensions
// for reprojecting a source grid to EPSG:3857: transform a sample
// lattice of source pixels, take the bounding box, and choose a
// resolution that preserves the source diagonal pixel count.
func DefaultTransform(g *SourceGeometry) (Affine, int, int, error) {
	n := defaultTransformSamples
	xs := make([]float64, 0, n*n)
	ys := make([]float64, 0, n*n)
	var x00, y00, x11, y11 float64
	for i := 0; i < n; i++ {
		row := float64(i) * float64(g.Height) / float64(n-1)
		for j := 0; j < n; j++ {
			col := float64(j) * float64(g.Width) / float64(n-1)
			nx, ny := g.Affine.Apply(col, row)
			lon, lat, err := g.Inverse(nx, ny)
			if err != nil {
				continue
			}
			mx, my := iradar.LonLatToMercator(lon, lat)
			if math.IsNaN(mx) || math.IsNaN(my) || math.IsInf(mx, 0) || math.IsInf(my, 0) {
				continue
			}
			xs = append(xs, mx)
			ys = append(ys, my)
			if i == 0 && j == 0 {
				x00, y00 = mx, my
			}
			if i == n-1 && j == n-1 {
				x11, y11 = mx, my
			}
		}
	}
	if len(xs) < 4 {
		return Affine{}, 0, 0, fmt.Errorf("warp: source grid does not transform to EPSG:3857")
	}
	xmin, xmax := floats.Min(xs), floats.Max(xs)
	ymin, ymax := floats.Min(ys), floats.Max(ys)

	diag := math.Hypot(x11-x00, y11-y00)
	res := diag / math.Hypot(float64(g.Width), float64(g.Height))
	if res <= 0 || math.IsNaN(res) {
		return Affine{}, 0, 0, fmt.Errorf("warp: cannot derive destination resolution")
	}
	w := int(math.Ceil((xmax - xmin) / res))
	h := int(math.Ceil((ymax - ymin) / res))
	if w <= 0 || h <= 0 || w > iradar.MaxGridDimension || h > iradar.MaxGridDimension {
		return Affine{}, 0, 0, fmt.Errorf("warp: destination dimensions %dx%d out of range", h, w)
	}
	return Affine{X0: xmin, Dx: res, Y0: ymax, Dy: -res}, h, w, nil
}

// inSourceRange reports whether a fractional source pixel position
// lies inside the grid. Pixel centers: the valid range is
// [-0.5, dim-0.5], closed at both edges; rounding maps the top edge
// onto the last pixel.
func inSourceRange(fcol, frow, srcW, srcH float64) bool {
	return fcol >= -0.5 && fcol <= srcW-0.5 && frow >= -0.5 && frow <= srcH-0.5
}

// BuildTransformGrid computes the pixel index maps for one source
// geometry. One forward transform per destination pixel; no source
// coordinate meshgrid is ever materialized.
func BuildTransformGrid(g *SourceGeometry, source, version string) (*TransformGrid, error) {
	dstAffine, dstH, dstW, err := DefaultTransform(g)
	if err != nil {
		return nil, fmt.Errorf("warp: %s: %v", source, err)
	}
	srcInv, err := g.Affine.Invert()
	if err != nil {
		return nil, fmt.Errorf("warp: %s: %v", source, err)
	}

	rows := make([]int16, dstH*dstW)
	cols := make([]int16, dstH*dstW)
	wf, hf := float64(g.Width), float64(g.Height)
	for r := 0; r < dstH; r++ {
		my := dstAffine.Y0 + dstAffine.Dy*(float64(r)+0.5)
		for c := 0; c < dstW; c++ {
			i := r*dstW + c
			mx := dstAffine.X0 + dstAffine.Dx*(float64(c)+0.5)
			lon, lat := iradar.MercatorToLonLat(mx, my)
			nx, ny, err := g.Forward(lon, lat)
			if err != nil {
				rows[i], cols[i] = -1, -1
				continue
			}
			fcol, frow := srcInv.Apply(nx, ny)
			if !inSourceRange(fcol, frow, wf, hf) {
				rows[i], cols[i] = -1, -1
				continue
			}
			sc := int(math.Round(fcol))
			sr := int(math.Round(frow))
			if sc < 0 {
				sc = 0
			} else if sc >= g.Width {
				sc = g.Width - 1
			}
			if sr < 0 {
				sr = 0
			} else if sr >= g.Height {
				sr = g.Height - 1
			}
			rows[i], cols[i] = int16(sr), int16(sc)
		}
	}

	xmin, ymin, xmax, ymax := dstAffine.Extent(dstW, dstH)
	west, south := iradar.MercatorToLonLat(xmin, ymin)
	east, north := iradar.MercatorToLonLat(xmax, ymax)
	return &TransformGrid{
		Source:      source,
		Version:     version,
		Rows:        rows,
		Cols:        cols,
		DstH:        dstH,
		DstW:        dstW,
		SrcH:        g.Height,
		SrcW:        g.Width,
		Mercator:    iradar.MercatorExtent{Xmin: xmin, Ymin: ymin, Xmax: xmax, Ymax: ymax},
		ResolutionM: dstAffine.Dx,
		DstBounds:   iradar.WGS84Bounds{West: west, East: east, South: south, North: north},
	}, nil
}

// Reprojected is a source frame resampled onto the grid's
// destination geometry.
type Reprojected struct {
	Source        string
	Data          []float32
	Height, Width int
	Mercator      iradar.MercatorExtent
	ResolutionM   float64
	Bounds        iradar.WGS84Bounds
}

// Apply resamples a frame through a transform grid: a NaN-filled
// destination buffer and one gather per destination pixel. This is
// the hot loop; accuracy is identical to the on-the-fly path by
// construction.
func Apply(g *TransformGrid, f *iradar.RadarFrame) (*Reprojected, error) {
	if f.Height != g.SrcH || f.Width != g.SrcW {
		return nil, fmt.Errorf("warp: frame %dx%d does not match grid source %dx%d",
			f.Height, f.Width, g.SrcH, g.SrcW)
	}
	nan := float32(math.NaN())
	out := make([]float32, g.DstH*g.DstW)
	for i := range out {
		out[i] = nan
	}
	srcW := g.SrcW
	for i, r := range g.Rows {
		if r < 0 {
			continue
		}
		out[i] = f.Data[int(r)*srcW+int(g.Cols[i])]
	}
	return &Reprojected{
		Source:      g.Source,
		Data:        out,
		Height:      g.DstH,
		Width:       g.DstW,
		Mercator:    g.Mercator,
		ResolutionM: g.ResolutionM,
		Bounds:      g.DstBounds,
	}, nil
}

// Reproject is the cold path: build the transform grid on the fly
// for a single frame and resample through it. Callers that hold a
// grid cache should prefer the cache.
func Reproject(f *iradar.RadarFrame, source, version string) (*Reprojected, *TransformGrid, error) {
	g, err := NewSourceGeometry(f.Projection, f.Bounds, f.Height, f.Width)
	if err != nil {
		return nil, nil, err
	}
	tg, err := BuildTransformGrid(g, source, version)
	if err != nil {
		return nil, nil, err
	}
	rp, err := Apply(tg, f)
	if err != nil {
		return nil, nil, err
	}
	return rp, tg, nil
}
