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

// Package composite fuses reprojected source frames into the fixed
// reference grid and drives the per-run pipeline: probe, outage
// gate, timestamp matching, two-pass processing and publication.
package composite

import (
	"fmt"
	"math"
	"sort"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/warp"
)

// Compositor accumulates reprojected frames into a reference-grid
// buffer using an elementwise NaN-aware maximum: NaN never
// displaces a finite value and a finite value replaces NaN, so the
// merge order cannot change the output.
type Compositor struct {
	ref  *iradar.ReferenceGrid
	data []float32

	sources []string

	// resident and peakResident track how many source frames are
	// retained at once; the pipeline contract is at most one.
	resident     int
	peakResident int
}

// NewCompositor allocates a compositor over the given reference
// grid, initialized to all-NaN.
func NewCompositor(ref *iradar.ReferenceGrid) *Compositor {
	data := make([]float32, ref.Height*ref.Width)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &Compositor{ref: ref, data: data}
}

// fmax is the merge operator: maximum with NaN as "missing".
func fmax(a, b float32) float32 {
	switch {
	case math.IsNaN(float64(a)):
		return b
	case math.IsNaN(float64(b)):
		return a
	case b > a:
		return b
	default:
		return a
	}
}

// FrameRetained records that the pipeline holds one more decoded
// source frame.
func (c *Compositor) FrameRetained() {
	c.resident++
	if c.resident > c.peakResident {
		c.peakResident = c.resident
	}
}

// FrameReleased records that a decoded source frame was dropped.
func (c *Compositor) FrameReleased() {
	if c.resident > 0 {
		c.resident--
	}
}

// PeakResident reports the largest number of source frames held at
// once since construction.
func (c *Compositor) PeakResident() int { return c.peakResident }

// AddSource merges one reprojected frame into the composite. The
// frame's mercator grid and the reference grid are both north-up,
// so the resample is a pure affine gather with no CRS transform.
func (c *Compositor) AddSource(source string, rp *warp.Reprojected) error {
	if rp == nil || len(rp.Data) != rp.Height*rp.Width {
		return fmt.Errorf("composite: malformed reprojected frame from %s", source)
	}
	for _, s := range c.sources {
		if s == source {
			return fmt.Errorf("composite: source %s already merged", source)
		}
	}

	for r := 0; r < c.ref.Height; r++ {
		y := c.ref.Mercator.Ymax - c.ref.ResolutionM*(float64(r)+0.5)
		sr := int(math.Round((rp.Mercator.Ymax-y)/rp.ResolutionM - 0.5))
		if sr < 0 || sr >= rp.Height {
			continue
		}
		rowOff := r * c.ref.Width
		srcOff := sr * rp.Width
		for col := 0; col < c.ref.Width; col++ {
			x := c.ref.Mercator.Xmin + c.ref.ResolutionM*(float64(col)+0.5)
			sc := int(math.Round((x-rp.Mercator.Xmin)/rp.ResolutionM - 0.5))
			if sc < 0 || sc >= rp.Width {
				continue
			}
			c.data[rowOff+col] = fmax(c.data[rowOff+col], rp.Data[srcOff+sc])
		}
	}

	c.sources = append(c.sources, source)
	return nil
}

// Result is a finished composite with its publication metadata.
type Result struct {
	Data          []float32
	Height, Width int
	Bounds        iradar.WGS84Bounds
	Mercator      iradar.MercatorExtent
	ResolutionM   float64

	Sources         []string
	ValidPixels     int
	TotalPixels     int
	CoveragePercent float64
}

// Composite returns the current merge state. The data slice is
// shared with the compositor; callers publish it before merging
// more sources.
func (c *Compositor) Composite() *Result {
	valid := 0
	for _, v := range c.data {
		if !math.IsNaN(float64(v)) {
			valid++
		}
	}
	sources := append([]string(nil), c.sources...)
	sort.Strings(sources)
	total := len(c.data)
	return &Result{
		Data:            c.data,
		Height:          c.ref.Height,
		Width:           c.ref.Width,
		Bounds:          c.ref.Bounds,
		Mercator:        c.ref.Mercator,
		ResolutionM:     c.ref.ResolutionM,
		Sources:         sources,
		ValidPixels:     valid,
		TotalPixels:     total,
		CoveragePercent: 100 * float64(valid) / float64(total),
	}
}

// Reset clears the merge state for the next timestamp, reusing the
// buffer.
func (c *Compositor) Reset() {
	nan := float32(math.NaN())
	for i := range c.data {
		c.data[i] = nan
	}
	c.sources = nil
}
