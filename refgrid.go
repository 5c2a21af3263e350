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

package iradar

import (
	"fmt"
	"math"
)

// The composite reference rectangle in WGS84. The fixed rectangle
// guarantees byte-stable composite dimensions independent of which
// sources are healthy.
const (
	RefWest  = 2.50
	RefEast  = 26.40
	RefSouth = 44.00
	RefNorth = 56.20
)

// DefaultResolutionM is the default composite resolution in
// meters per pixel.
const DefaultResolutionM = 500

const earthRadiusM = 6378137.0

// LonLatToMercator converts EPSG:4326 degrees to EPSG:3857 meters
// on the web-mapping sphere.
func LonLatToMercator(lon, lat float64) (x, y float64) {
	x = earthRadiusM * lon * math.Pi / 180
	y = earthRadiusM * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// MercatorToLonLat converts EPSG:3857 meters to EPSG:4326 degrees.
func MercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / earthRadiusM * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadiusM)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// ReferenceGrid is the fixed composite target: the reference
// rectangle reprojected to Web Mercator at a given resolution.
type ReferenceGrid struct {
	Bounds        WGS84Bounds
	Mercator      MercatorExtent
	Height, Width int
	ResolutionM   float64
}

// NewReferenceGrid builds the composite target grid for the given
// resolution in meters per pixel.
func NewReferenceGrid(resolutionM float64) (*ReferenceGrid, error) {
	if resolutionM <= 0 {
		return nil, fmt.Errorf("iradar: invalid reference grid resolution %g", resolutionM)
	}
	xmin, ymin := LonLatToMercator(RefWest, RefSouth)
	xmax, ymax := LonLatToMercator(RefEast, RefNorth)
	w := int(math.Round((xmax - xmin) / resolutionM))
	h := int(math.Round((ymax - ymin) / resolutionM))
	if w <= 0 || h <= 0 || w > MaxGridDimension || h > MaxGridDimension {
		return nil, fmt.Errorf("iradar: reference grid dimensions %dx%d at resolution %g are out of range",
			h, w, resolutionM)
	}
	// Snap the mercator extent to a whole number of cells so the
	// affine is exact.
	xmax = xmin + float64(w)*resolutionM
	ymax = ymin + float64(h)*resolutionM
	west, south := MercatorToLonLat(xmin, ymin)
	east, north := MercatorToLonLat(xmax, ymax)
	return &ReferenceGrid{
		Bounds:      WGS84Bounds{West: west, East: east, South: south, North: north},
		Mercator:    MercatorExtent{Xmin: xmin, Ymin: ymin, Xmax: xmax, Ymax: ymax},
		Height:      h,
		Width:       w,
		ResolutionM: resolutionM,
	}, nil
}
