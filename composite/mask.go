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
	"math"

	"github.com/ctessum/sparse"
	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/warp"
)

// MaskBuilder accumulates per-pixel coverage counts on the reference
// grid. A pixel is covered when at least one source footprint can
// supply it, regardless of whether that source currently reports
// precipitation there.
type MaskBuilder struct {
	ref    *iradar.ReferenceGrid
	counts *sparse.DenseArrayInt
}

// NewMaskBuilder allocates a zero-count builder over the reference
// grid.
func NewMaskBuilder(ref *iradar.ReferenceGrid) *MaskBuilder {
	return &MaskBuilder{
		ref:    ref,
		counts: sparse.ZerosDenseInt(ref.Height, ref.Width),
	}
}

// AddGrid marks every reference pixel that a transform grid can
// supply: the pixel's center falls inside the grid's mercator extent
// and maps to a valid source index.
func (m *MaskBuilder) AddGrid(g *warp.TransformGrid) {
	for r := 0; r < m.ref.Height; r++ {
		y := m.ref.Mercator.Ymax - m.ref.ResolutionM*(float64(r)+0.5)
		gr := int(math.Round((g.Mercator.Ymax-y)/g.ResolutionM - 0.5))
		if gr < 0 || gr >= g.DstH {
			continue
		}
		rowOff := r * m.ref.Width
		gridOff := gr * g.DstW
		for c := 0; c < m.ref.Width; c++ {
			x := m.ref.Mercator.Xmin + m.ref.ResolutionM*(float64(c)+0.5)
			gc := int(math.Round((x-g.Mercator.Xmin)/g.ResolutionM - 0.5))
			if gc < 0 || gc >= g.DstW {
				continue
			}
			if g.Rows[gridOff+gc] >= 0 {
				m.counts.Elements[rowOff+c]++
			}
		}
	}
}

// AddBounds marks every reference pixel whose center lies inside a
// rectangular WGS84 footprint. Used for sources whose whole native
// rectangle is valid data.
func (m *MaskBuilder) AddBounds(b iradar.WGS84Bounds) {
	xmin, ymin := iradar.LonLatToMercator(b.West, b.South)
	xmax, ymax := iradar.LonLatToMercator(b.East, b.North)
	for r := 0; r < m.ref.Height; r++ {
		y := m.ref.Mercator.Ymax - m.ref.ResolutionM*(float64(r)+0.5)
		if y < ymin || y > ymax {
			continue
		}
		rowOff := r * m.ref.Width
		for c := 0; c < m.ref.Width; c++ {
			x := m.ref.Mercator.Xmin + m.ref.ResolutionM*(float64(c)+0.5)
			if x < xmin || x > xmax {
				continue
			}
			m.counts.Elements[rowOff+c]++
		}
	}
}

// Covered flattens the counts into a boolean mask.
func (m *MaskBuilder) Covered() []bool {
	out := make([]bool, len(m.counts.Elements))
	for i, n := range m.counts.Elements {
		out[i] = n > 0
	}
	return out
}

// CoveredPixels returns how many reference pixels at least one
// source can supply.
func (m *MaskBuilder) CoveredPixels() int {
	n := 0
	for _, v := range m.counts.Elements {
		if v > 0 {
			n++
		}
	}
	return n
}

// GridCoverage is the single-source case: the coverage mask in the
// grid's own destination geometry, true where the source footprint
// supplies the pixel.
func GridCoverage(g *warp.TransformGrid) []bool {
	out := make([]bool, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = r >= 0
	}
	return out
}
