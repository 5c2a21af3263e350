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

// Package warp reprojects provider radar grids onto Web Mercator.
// It precomputes per-source transform grids that map each output
// pixel to a source pixel, so runtime reprojection is an array
// gather, and caches those grids in memory, on disk and in the
// object store.
package warp

import (
	"fmt"
	"math"
)

// Affine is a north-up-capable affine grid transform in the usual
// geotransform layout: x = X0 + Dx*col + Rx*row,
// y = Y0 + Ry*col + Dy*row. Row-axis terms Rx and Ry are zero for
// all the grids the providers deliver, but are carried so inversion
// stays general.
type Affine struct {
	X0, Dx, Rx float64
	Y0, Ry, Dy float64
}

// Apply maps fractional pixel coordinates to world coordinates.
func (a Affine) Apply(col, row float64) (x, y float64) {
	x = a.X0 + a.Dx*col + a.Rx*row
	y = a.Y0 + a.Ry*col + a.Dy*row
	return x, y
}

// Center maps a pixel index to the world coordinates of its center.
func (a Affine) Center(col, row int) (x, y float64) {
	return a.Apply(float64(col)+0.5, float64(row)+0.5)
}

// Invert returns the affine mapping world coordinates back to
// fractional pixel coordinates.
func (a Affine) Invert() (Affine, error) {
	det := a.Dx*a.Dy - a.Rx*a.Ry
	if det == 0 || math.IsNaN(det) {
		return Affine{}, fmt.Errorf("warp: affine %+v is not invertible", a)
	}
	inv := Affine{
		Dx: a.Dy / det,
		Rx: -a.Rx / det,
		Ry: -a.Ry / det,
		Dy: a.Dx / det,
	}
	inv.X0 = -(inv.Dx*a.X0 + inv.Rx*a.Y0)
	inv.Y0 = -(inv.Ry*a.X0 + inv.Dy*a.Y0)
	return inv, nil
}

// Extent returns the world rectangle covered by a w x h grid under
// the affine.
func (a Affine) Extent(w, h int) (xmin, ymin, xmax, ymax float64) {
	x0, y0 := a.Apply(0, 0)
	x1, y1 := a.Apply(float64(w), float64(h))
	xmin, xmax = math.Min(x0, x1), math.Max(x0, x1)
	ymin, ymax = math.Min(y0, y1), math.Max(y0, y1)
	return xmin, ymin, xmax, ymax
}

// northUp builds the affine of a north-up grid from its extent.
func northUp(xmin, ymin, xmax, ymax float64, w, h int) Affine {
	return Affine{
		X0: xmin, Dx: (xmax - xmin) / float64(w),
		Y0: ymax, Dy: -(ymax - ymin) / float64(h),
	}
}
