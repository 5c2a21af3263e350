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
	"testing"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/warp"
)

const testResolutionM = 4000

func testRefGrid(t *testing.T) *iradar.ReferenceGrid {
	t.Helper()
	ref, err := iradar.NewReferenceGrid(testResolutionM)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

// testReprojected builds a reprojected frame aligned to the
// reference grid: a cellsxcells block of the given value anchored
// rowOff rows below the top-left corner.
func testReprojected(ref *iradar.ReferenceGrid, source string, rowOff, cells int, value float32) *warp.Reprojected {
	nan := float32(math.NaN())
	data := make([]float32, cells*cells)
	for i := range data {
		if i%5 == 3 {
			data[i] = nan
		} else {
			data[i] = value
		}
	}
	top := ref.Mercator.Ymax - float64(rowOff)*ref.ResolutionM
	return &warp.Reprojected{
		Source: source,
		Data:   data,
		Height: cells,
		Width:  cells,
		Mercator: iradar.MercatorExtent{
			Xmin: ref.Mercator.Xmin,
			Xmax: ref.Mercator.Xmin + float64(cells)*ref.ResolutionM,
			Ymin: top - float64(cells)*ref.ResolutionM,
			Ymax: top,
		},
		ResolutionM: ref.ResolutionM,
	}
}

func TestFmax(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		a, b, want float32
	}{
		{10, 20, 20},
		{20, 10, 20},
		{nan, 20, 20},
		{20, nan, 20},
		{-5, -10, -5},
	}
	for _, test := range tests {
		if have := fmax(test.a, test.b); have != test.want {
			t.Errorf("fmax(%v, %v): want %v but have %v", test.a, test.b, test.want, have)
		}
	}
	if !math.IsNaN(float64(fmax(nan, nan))) {
		t.Error("want NaN for fmax(NaN, NaN)")
	}
}

func TestAddSourceMergesMax(t *testing.T) {
	ref := testRefGrid(t)
	comp := NewCompositor(ref)

	// Two overlapping blocks; the overlap keeps the larger value.
	if err := comp.AddSource("dwd", testReprojected(ref, "dwd", 0, 8, 10)); err != nil {
		t.Fatal(err)
	}
	if err := comp.AddSource("chmi", testReprojected(ref, "chmi", 4, 8, 30)); err != nil {
		t.Fatal(err)
	}
	res := comp.Composite()

	// A pixel only dwd covers.
	if v := res.Data[0*ref.Width+0]; v != 10 {
		t.Errorf("want 10 at dwd-only pixel but have %v", v)
	}
	// A pixel in the overlap where both sources have finite data.
	found := false
	for r := 4; r < 8 && !found; r++ {
		for c := 0; c < 8 && !found; c++ {
			i := r*ref.Width + c
			di := (r)*8 + c
			ci := (r-4)*8 + c
			if di%5 != 3 && ci%5 != 3 {
				if res.Data[i] != 30 {
					t.Errorf("want 30 in overlap but have %v", res.Data[i])
				}
				found = true
			}
		}
	}
	if !found {
		t.Fatal("no overlap pixel with finite data in both sources")
	}
}

func TestAddSourceOrderIndependent(t *testing.T) {
	ref := testRefGrid(t)
	a := testReprojected(ref, "dwd", 0, 10, 15)
	b := testReprojected(ref, "omsz", 5, 10, 35)

	c1 := NewCompositor(ref)
	if err := c1.AddSource("dwd", a); err != nil {
		t.Fatal(err)
	}
	if err := c1.AddSource("omsz", b); err != nil {
		t.Fatal(err)
	}
	c2 := NewCompositor(ref)
	if err := c2.AddSource("omsz", b); err != nil {
		t.Fatal(err)
	}
	if err := c2.AddSource("dwd", a); err != nil {
		t.Fatal(err)
	}

	r1, r2 := c1.Composite(), c2.Composite()
	for i := range r1.Data {
		v1, v2 := r1.Data[i], r2.Data[i]
		if math.IsNaN(float64(v1)) && math.IsNaN(float64(v2)) {
			continue
		}
		if v1 != v2 {
			t.Fatalf("pixel %d: want identical merges but have %v and %v", i, v1, v2)
		}
	}
	if r1.ValidPixels != r2.ValidPixels {
		t.Errorf("want equal valid pixel counts but have %d and %d", r1.ValidPixels, r2.ValidPixels)
	}
}

func TestAddSourceDuplicate(t *testing.T) {
	ref := testRefGrid(t)
	comp := NewCompositor(ref)
	rp := testReprojected(ref, "dwd", 0, 4, 10)
	if err := comp.AddSource("dwd", rp); err != nil {
		t.Fatal(err)
	}
	if err := comp.AddSource("dwd", rp); err == nil {
		t.Error("want error for duplicate source but have nil")
	}
}

func TestCompositeCountersAndReset(t *testing.T) {
	ref := testRefGrid(t)
	comp := NewCompositor(ref)
	res := comp.Composite()
	if res.ValidPixels != 0 {
		t.Errorf("want 0 valid pixels in empty composite but have %d", res.ValidPixels)
	}
	if res.TotalPixels != ref.Height*ref.Width {
		t.Errorf("want %d total pixels but have %d", ref.Height*ref.Width, res.TotalPixels)
	}

	if err := comp.AddSource("shmu", testReprojected(ref, "shmu", 0, 6, 20)); err != nil {
		t.Fatal(err)
	}
	res = comp.Composite()
	if res.ValidPixels == 0 {
		t.Error("want valid pixels after merge")
	}
	if len(res.Sources) != 1 || res.Sources[0] != "shmu" {
		t.Errorf("want sources [shmu] but have %v", res.Sources)
	}

	comp.Reset()
	res = comp.Composite()
	if res.ValidPixels != 0 || len(res.Sources) != 0 {
		t.Errorf("want empty composite after reset but have %d valid, sources %v",
			res.ValidPixels, res.Sources)
	}
}

func TestPeakResident(t *testing.T) {
	comp := NewCompositor(testRefGrid(t))
	for i := 0; i < 5; i++ {
		comp.FrameRetained()
		comp.FrameReleased()
	}
	if comp.PeakResident() != 1 {
		t.Errorf("want peak residency 1 but have %d", comp.PeakResident())
	}
}

func TestMaskBuilder(t *testing.T) {
	ref := testRefGrid(t)
	mb := NewMaskBuilder(ref)
	if mb.CoveredPixels() != 0 {
		t.Errorf("want 0 covered pixels initially but have %d", mb.CoveredPixels())
	}

	// A rectangle strictly inside the reference bounds.
	mb.AddBounds(iradar.WGS84Bounds{West: 10, East: 14, South: 47, North: 49})
	n := mb.CoveredPixels()
	if n == 0 {
		t.Fatal("want covered pixels after AddBounds")
	}
	if n == ref.Height*ref.Width {
		t.Error("want partial coverage for an interior rectangle")
	}
	covered := mb.Covered()
	cnt := 0
	for _, c := range covered {
		if c {
			cnt++
		}
	}
	if cnt != n {
		t.Errorf("want %d covered in mask but have %d", n, cnt)
	}
	// Adding the same rectangle again must not change coverage.
	mb.AddBounds(iradar.WGS84Bounds{West: 10, East: 14, South: 47, North: 49})
	if mb.CoveredPixels() != n {
		t.Errorf("want idempotent coverage %d but have %d", n, mb.CoveredPixels())
	}
}

func TestGridCoverage(t *testing.T) {
	g := &warp.TransformGrid{
		Rows: []int16{-1, 0, 1, -1},
		Cols: []int16{-1, 0, 1, -1},
		DstH: 2, DstW: 2, SrcH: 2, SrcW: 2,
	}
	want := []bool{false, true, true, false}
	have := GridCoverage(g)
	for i := range want {
		if have[i] != want[i] {
			t.Errorf("pixel %d: want %v but have %v", i, want[i], have[i])
		}
	}
}
