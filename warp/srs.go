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
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/imeteo/iradar"
)

const deg2rad = math.Pi / 180

// SourceGeometry couples a provider grid's native CRS with its
// affine: everything the grid builder needs to locate a source
// pixel for a world coordinate.
type SourceGeometry struct {
	// Forward maps longitude/latitude degrees to native grid
	// coordinates; Inverse maps them back.
	Forward proj.Transformer
	Inverse proj.Transformer
	Affine  Affine
	Height  int
	Width   int
}

// NewSourceGeometry derives the native geometry of a frame's grid
// from its tagged projection info. Pixel sizes are always derived
// from corner coordinates transformed through the native CRS; the
// provider xscale/yscale attributes are not trusted (the SHMU
// values are known to be wrong).
func NewSourceGeometry(p iradar.ProjectionInfo, bounds iradar.WGS84Bounds, height, width int) (*SourceGeometry, error) {
	if height <= 0 || width <= 0 || height > iradar.MaxGridDimension || width > iradar.MaxGridDimension {
		return nil, fmt.Errorf("warp: invalid grid dimensions %dx%d", height, width)
	}
	switch p.Kind {
	case iradar.ProjectionWGS84:
		identity := func(x, y float64) (float64, float64, error) { return x, y, nil }
		return &SourceGeometry{
			Forward: identity,
			Inverse: identity,
			Affine:  northUp(bounds.West, bounds.South, bounds.East, bounds.North, width, height),
			Height:  height,
			Width:   width,
		}, nil

	case iradar.ProjectionProjected:
		forward, inverse, err := newTransformers(p.Proj4)
		if err != nil {
			return nil, err
		}
		c := p.Corners
		xll, yll, err := forward(c.West, c.South)
		if err != nil {
			return nil, fmt.Errorf("warp: projecting lower-left corner: %v", err)
		}
		xur, yur, err := forward(c.East, c.North)
		if err != nil {
			return nil, fmt.Errorf("warp: projecting upper-right corner: %v", err)
		}
		if xur <= xll || yur <= yll {
			return nil, fmt.Errorf("warp: degenerate projected corners (%g,%g)-(%g,%g)", xll, yll, xur, yur)
		}
		return &SourceGeometry{
			Forward: forward,
			Inverse: inverse,
			Affine:  northUp(xll, yll, xur, yur, width, height),
			Height:  height,
			Width:   width,
		}, nil

	case iradar.ProjectionLCC:
		forward, inverse, err := newTransformers(p.Proj4)
		if err != nil {
			return nil, err
		}
		// The grid is centered on the projection origin.
		halfW := float64(width) / 2 * p.Grid.DxM
		halfH := float64(height) / 2 * p.Grid.DyM
		return &SourceGeometry{
			Forward: forward,
			Inverse: inverse,
			Affine:  northUp(-halfW, -halfH, halfW, halfH, width, height),
			Height:  height,
			Width:   width,
		}, nil
	}
	return nil, fmt.Errorf("warp: unknown projection kind %v", p.Kind)
}

// newTransformers builds degrees-in forward and degrees-out inverse
// transformers between WGS84 and the CRS named by a proj4 string.
// Stereographic definitions are dispatched to the local
// implementation; everything else goes through the projection
// library.
func newTransformers(proj4 string) (forward, inverse proj.Transformer, err error) {
	srcSR, err := proj.Parse(proj4)
	if err != nil {
		return nil, nil, fmt.Errorf("warp: parsing projection %q: %v", proj4, err)
	}
	if strings.Contains(proj4, "+proj=stere") {
		f, i, err := Stere(srcSR)
		if err != nil {
			return nil, nil, err
		}
		forward = func(lon, lat float64) (float64, float64, error) {
			return f(lon*deg2rad, lat*deg2rad)
		}
		inverse = func(x, y float64) (float64, float64, error) {
			lon, lat, err := i(x, y)
			return lon / deg2rad, lat / deg2rad, err
		}
		return forward, inverse, nil
	}
	longlat, err := proj.Parse("+proj=longlat")
	if err != nil {
		return nil, nil, fmt.Errorf("warp: parsing longlat: %v", err)
	}
	forward, err = longlat.NewTransform(srcSR)
	if err != nil {
		return nil, nil, fmt.Errorf("warp: building transform for %q: %v", proj4, err)
	}
	inverse, err = srcSR.NewTransform(longlat)
	if err != nil {
		return nil, nil, fmt.Errorf("warp: building inverse transform for %q: %v", proj4, err)
	}
	return forward, inverse, nil
}
