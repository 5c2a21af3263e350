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
	"context"
	"math"
	"testing"

	"github.com/ctessum/geom/proj"
	"github.com/imeteo/iradar"
)

// dwdProj4 is the polar stereographic grid the German national
// composite is delivered on.
const dwdProj4 = "+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6378137 +b=6356752.3142451802 +no_defs +x_0=543196.83521776402 +y_0=3622588.8619310018"

func TestAffineInvert(t *testing.T) {
	a := Affine{X0: 100, Dx: 2.5, Y0: 400, Dy: -2.5}
	inv, err := a.Invert()
	if err != nil {
		t.Fatal(err)
	}
	cases := [][2]float64{{0, 0}, {10, 20}, {55.5, -3.25}}
	for _, c := range cases {
		x, y := a.Apply(c[0], c[1])
		col, row := inv.Apply(x, y)
		if math.Abs(col-c[0]) > 1e-9 || math.Abs(row-c[1]) > 1e-9 {
			t.Errorf("want (%g,%g) but have (%g,%g)", c[0], c[1], col, row)
		}
	}
}

func TestAffineInvertSingular(t *testing.T) {
	a := Affine{X0: 0, Dx: 0, Y0: 0, Dy: 0}
	if _, err := a.Invert(); err == nil {
		t.Error("want error for singular affine but have nil")
	}
}

func TestStereRoundTrip(t *testing.T) {
	sr, err := proj.Parse(dwdProj4)
	if err != nil {
		t.Fatal(err)
	}
	forward, inverse, err := Stere(sr)
	if err != nil {
		t.Fatal(err)
	}
	const d2r = math.Pi / 180
	cases := [][2]float64{
		{10, 50},   // projection central meridian
		{3.6, 46},  // composite lower left
		{18.5, 55}, // composite upper right
		{-2, 60},
	}
	for _, c := range cases {
		x, y, err := forward(c[0]*d2r, c[1]*d2r)
		if err != nil {
			t.Fatal(err)
		}
		lon, lat, err := inverse(x, y)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(lon/d2r-c[0]) > 1e-7 || math.Abs(lat/d2r-c[1]) > 1e-7 {
			t.Errorf("want (%g,%g) but have (%g,%g)", c[0], c[1], lon/d2r, lat/d2r)
		}
	}
}

func TestStereObliqueRejected(t *testing.T) {
	sr, err := proj.Parse("+proj=stere +lat_0=52 +lon_0=10 +a=6370040 +b=6370040")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Stere(sr); err == nil {
		t.Error("want error for oblique stereographic but have nil")
	}
}

func TestStereCentralMeridianIsVertical(t *testing.T) {
	sr, err := proj.Parse("+proj=stere +lat_0=90 +lat_ts=60 +lon_0=10 +a=6370040 +b=6370040")
	if err != nil {
		t.Fatal(err)
	}
	forward, _, err := Stere(sr)
	if err != nil {
		t.Fatal(err)
	}
	const d2r = math.Pi / 180
	x1, y1, _ := forward(10*d2r, 46*d2r)
	x2, y2, _ := forward(10*d2r, 54*d2r)
	if math.Abs(x1) > 1e-6 || math.Abs(x2) > 1e-6 {
		t.Errorf("want x=0 on central meridian but have %g and %g", x1, x2)
	}
	// Northern latitudes are closer to the pole.
	if !(y2 > y1) {
		t.Errorf("want y(54N)=%g > y(46N)=%g", y2, y1)
	}
}

func wgs84Geometry(t *testing.T, h, w int) (*SourceGeometry, iradar.WGS84Bounds) {
	t.Helper()
	bounds := iradar.WGS84Bounds{West: 11.2, East: 20.2, South: 48.0, North: 52.4}
	g, err := NewSourceGeometry(iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84}, bounds, h, w)
	if err != nil {
		t.Fatal(err)
	}
	return g, bounds
}

func TestDefaultTransform(t *testing.T) {
	g, bounds := wgs84Geometry(t, 200, 400)
	a, h, w, err := DefaultTransform(g)
	if err != nil {
		t.Fatal(err)
	}
	if h <= 0 || w <= 0 {
		t.Fatalf("want positive dimensions but have %dx%d", h, w)
	}
	if a.Dx <= 0 || a.Dy >= 0 {
		t.Errorf("want north-up affine but have dx=%g dy=%g", a.Dx, a.Dy)
	}
	// The destination extent covers the source bounds.
	xmin, ymin, xmax, ymax := a.Extent(w, h)
	wx, sy := iradar.LonLatToMercator(bounds.West, bounds.South)
	ex, ny := iradar.LonLatToMercator(bounds.East, bounds.North)
	tol := 2 * a.Dx
	if xmin > wx+tol || xmax < ex-tol || ymin > sy+tol || ymax < ny-tol {
		t.Errorf("destination extent (%g,%g)-(%g,%g) does not cover source (%g,%g)-(%g,%g)",
			xmin, ymin, xmax, ymax, wx, sy, ex, ny)
	}
}

func TestBuildTransformGridMatchesDirectLookup(t *testing.T) {
	g, _ := wgs84Geometry(t, 60, 90)
	tg, err := BuildTransformGrid(g, "test", "v0")
	if err != nil {
		t.Fatal(err)
	}
	if err := tg.Check(); err != nil {
		t.Fatal(err)
	}
	srcInv, err := g.Affine.Invert()
	if err != nil {
		t.Fatal(err)
	}
	a := tg.DstAffine()
	for r := 0; r < tg.DstH; r += 7 {
		for c := 0; c < tg.DstW; c += 11 {
			mx, my := a.Center(c, r)
			lon, lat := iradar.MercatorToLonLat(mx, my)
			fcol, frow := srcInv.Apply(lon, lat)
			i := r*tg.DstW + c
			if !inSourceRange(fcol, frow, float64(g.Width), float64(g.Height)) {
				if tg.Rows[i] != -1 || tg.Cols[i] != -1 {
					t.Fatalf("dst (%d,%d): want out-of-footprint but have (%d,%d)",
						r, c, tg.Rows[i], tg.Cols[i])
				}
				continue
			}
			if int(tg.Cols[i]) != int(math.Round(fcol)) || int(tg.Rows[i]) != int(math.Round(frow)) {
				t.Fatalf("dst (%d,%d): want src (%d,%d) but have (%d,%d)",
					r, c, int(math.Round(frow)), int(math.Round(fcol)), tg.Rows[i], tg.Cols[i])
			}
		}
	}
}

// The valid fractional range for pixel centers is closed at both
// edges: a position exactly on the outer edge still belongs to the
// boundary pixel.
func TestSourceRangeEdges(t *testing.T) {
	const w, h = 90.0, 60.0
	tests := []struct {
		fcol, frow float64
		want       bool
	}{
		{0, 0, true},
		{-0.5, -0.5, true},       // lower edges, inclusive
		{w - 0.5, h - 0.5, true}, // upper edges, inclusive
		{-0.50001, 0, false},
		{0, h - 0.49999, false},
		{w - 0.49999, 0, false},
	}
	for _, test := range tests {
		if have := inSourceRange(test.fcol, test.frow, w, h); have != test.want {
			t.Errorf("(%g,%g): want %v but have %v", test.fcol, test.frow, test.want, have)
		}
	}
}

func TestApplyMatchesColdPath(t *testing.T) {
	const h, w = 50, 80
	bounds := iradar.WGS84Bounds{West: 11.2, East: 20.2, South: 48.0, North: 52.4}
	data := make([]float32, h*w)
	for i := range data {
		if i%13 == 0 {
			data[i] = float32(math.NaN())
		} else {
			data[i] = float32(i%120) - 30
		}
	}
	f := &iradar.RadarFrame{
		Data: data, Height: h, Width: w, Bounds: bounds,
		Projection: iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84},
	}

	rp1, tg, err := Reproject(f, "test", "v0")
	if err != nil {
		t.Fatal(err)
	}
	rp2, err := Apply(tg, f)
	if err != nil {
		t.Fatal(err)
	}
	if rp1.Height != rp2.Height || rp1.Width != rp2.Width {
		t.Fatalf("want %dx%d but have %dx%d", rp1.Height, rp1.Width, rp2.Height, rp2.Width)
	}
	for i := range rp1.Data {
		a, b := rp1.Data[i], rp2.Data[i]
		if math.IsNaN(float64(a)) != math.IsNaN(float64(b)) || (!math.IsNaN(float64(a)) && a != b) {
			t.Fatalf("pixel %d: want %v but have %v", i, a, b)
		}
	}
}

func TestApplyShapeMismatch(t *testing.T) {
	g, bounds := wgs84Geometry(t, 30, 40)
	tg, err := BuildTransformGrid(g, "test", "v0")
	if err != nil {
		t.Fatal(err)
	}
	f := &iradar.RadarFrame{
		Data: make([]float32, 20*40), Height: 20, Width: 40, Bounds: bounds,
		Projection: iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84},
	}
	if _, err := Apply(tg, f); err == nil {
		t.Error("want error for mismatched frame shape but have nil")
	}
}

func TestGridCodecRoundTrip(t *testing.T) {
	g, _ := wgs84Geometry(t, 40, 60)
	tg, err := BuildTransformGrid(g, "test", GridVersion)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalGrid(tg)
	if err != nil {
		t.Fatal(err)
	}
	out, err := UnmarshalGrid(b)
	if err != nil {
		t.Fatal(err)
	}
	tg2 := out.(*TransformGrid)
	if tg2.Source != tg.Source || tg2.Version != tg.Version {
		t.Errorf("want %s/%s but have %s/%s", tg.Source, tg.Version, tg2.Source, tg2.Version)
	}
	if tg2.DstH != tg.DstH || tg2.DstW != tg.DstW || tg2.SrcH != tg.SrcH || tg2.SrcW != tg.SrcW {
		t.Errorf("shape changed in round trip: %dx%d/%dx%d vs %dx%d/%dx%d",
			tg.DstH, tg.DstW, tg.SrcH, tg.SrcW, tg2.DstH, tg2.DstW, tg2.SrcH, tg2.SrcW)
	}
	if math.Abs(tg2.ResolutionM-tg.ResolutionM) > 1e-9 {
		t.Errorf("want resolution %g but have %g", tg.ResolutionM, tg2.ResolutionM)
	}
	if tg2.Mercator != tg.Mercator {
		t.Errorf("want mercator extent %+v but have %+v", tg.Mercator, tg2.Mercator)
	}
	for i := range tg.Rows {
		if tg2.Rows[i] != tg.Rows[i] || tg2.Cols[i] != tg.Cols[i] {
			t.Fatalf("index %d changed in round trip", i)
		}
	}
}

func TestUnmarshalGridRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalGrid([]byte("not a container")); err == nil {
		t.Error("want error for garbage input but have nil")
	}
}

func TestGridCacheKey(t *testing.T) {
	cache, err := NewGridCache(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := wgs84Geometry(t, 40, 60)
	key, err := cache.Key("dwd", g)
	if err != nil {
		t.Fatal(err)
	}
	want := "dwd_40x60_"
	if key[:len(want)] != want {
		t.Errorf("want key prefix %q but have %q", want, key)
	}
	if key[len(key)-len(GridVersion):] != GridVersion {
		t.Errorf("want key to end in %q but have %q", GridVersion, key)
	}

	for _, bad := range []string{"", "DWD", "../etc", "a", "dwd/1"} {
		if _, err := cache.Key(bad, g); err == nil {
			t.Errorf("want error for source name %q but have nil", bad)
		}
	}
}

func TestGridCacheGet(t *testing.T) {
	cache, err := NewGridCache(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := wgs84Geometry(t, 40, 60)
	ctx := context.Background()
	tg, err := cache.Get(ctx, "dwd", g)
	if err != nil {
		t.Fatal(err)
	}
	if tg.Version != GridVersion {
		t.Errorf("want version %q but have %q", GridVersion, tg.Version)
	}
	// Second resolution comes from the memory tier and must be
	// identical.
	tg2, err := cache.Get(ctx, "dwd", g)
	if err != nil {
		t.Fatal(err)
	}
	if tg2.DstH != tg.DstH || tg2.DstW != tg.DstW {
		t.Errorf("want %dx%d but have %dx%d", tg.DstH, tg.DstW, tg2.DstH, tg2.DstW)
	}
	for i := range tg.Rows {
		if tg2.Rows[i] != tg.Rows[i] {
			t.Fatalf("index %d differs between cache hits", i)
		}
	}
}

func TestBoundsConsistency(t *testing.T) {
	g, _ := wgs84Geometry(t, 40, 60)
	tg, err := BuildTransformGrid(g, "test", GridVersion)
	if err != nil {
		t.Fatal(err)
	}
	// Published WGS84 bounds must be the mercator extent converted,
	// not an independent computation.
	west, south := iradar.MercatorToLonLat(tg.Mercator.Xmin, tg.Mercator.Ymin)
	east, north := iradar.MercatorToLonLat(tg.Mercator.Xmax, tg.Mercator.Ymax)
	if math.Abs(tg.DstBounds.West-west) > 1e-9 || math.Abs(tg.DstBounds.East-east) > 1e-9 ||
		math.Abs(tg.DstBounds.South-south) > 1e-9 || math.Abs(tg.DstBounds.North-north) > 1e-9 {
		t.Errorf("want bounds derived from mercator extent but have %+v", tg.DstBounds)
	}
}
