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

package sources

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/internal/memfile"
)

// The byte range above 127 carries the heavy-precipitation half of
// the scale; treating the bytes as signed there turns it into
// garbage, so the whole range is exercised.
func TestOMSZByteScaling(t *testing.T) {
	cases := []struct {
		raw  uint8
		want float32
		nan  bool
	}{
		{100, 18, false},   // 100/2-32
		{150, 43, false},   // above the signed-byte boundary
		{254, 85, false},   // 95 dBZ clipped to 85
		{255, 0, true},     // outside coverage
		{0, 0, true},       // background mask
		{127, 31.5, false}, // largest low-half byte
	}
	for _, c := range cases {
		if c.raw == omszNodata || c.raw == omszUndetect {
			if !c.nan {
				t.Errorf("raw %d: want %g but classified nodata", c.raw, c.want)
			}
			continue
		}
		if c.nan {
			t.Errorf("raw %d: want nodata but have value", c.raw)
			continue
		}
		have := iradar.ClipDBZ(omszDBZ(c.raw))
		if have != c.want {
			t.Errorf("raw %d: want %g dBZ but have %g", c.raw, c.want, have)
		}
	}
}

// writeOMSZFixture builds a zipped netCDF in the provider's shape:
// an NC_BYTE reflectivity variable, which cdf types as []uint8.
func writeOMSZFixture(t *testing.T, dir string, raw []uint8, h, w int) string {
	t.Helper()
	head := cdf.NewHeader([]string{"lat", "lon"}, []int{h, w})
	head.AddAttribute("", "La1", []float64{50.10})
	head.AddAttribute("", "Lo1", []float64{13.45})
	head.AddAttribute("", "La2", []float64{43.80})
	head.AddAttribute("", "Lo2", []float64{26.80})
	head.AddVariable("refl2D", []string{"lat", "lon"}, []uint8{0})
	head.Define()

	mf := memfile.New(nil)
	f, err := cdf.Create(mf, head)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Writer("refl2D", nil, nil).Write(raw); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("RADAR_COMP_20260128120000.nc")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write(mf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "omsz.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOMSZDecode(t *testing.T) {
	const h, w = 4, 5
	raw := make([]uint8, h*w)
	for i := range raw {
		raw[i] = 255 // outside coverage
	}
	raw[0] = 100 // 18 dBZ
	raw[1] = 150 // 43 dBZ
	raw[2] = 0   // background mask

	path := writeOMSZFixture(t, t.TempDir(), raw, h, w)
	o := newOMSZ(Options{Log: testLogger()}).(*omsz)
	f, err := o.Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Height != h || f.Width != w {
		t.Fatalf("want %dx%d but have %dx%d", h, w, f.Height, f.Width)
	}
	if f.Timestamp != "20260128120000" {
		t.Errorf("want timestamp 20260128120000 but have %s", f.Timestamp)
	}
	if f.Data[0] != 18 || f.Data[1] != 43 {
		t.Errorf("want 18 and 43 dBZ but have %g and %g", f.Data[0], f.Data[1])
	}
	if !isNaN32(f.Data[2]) || !isNaN32(f.Data[3]) {
		t.Errorf("want NaN for mask and nodata but have %g and %g", f.Data[2], f.Data[3])
	}
	// La1 is the northern boundary.
	if f.Bounds.North != 50.10 || f.Bounds.South != 43.80 {
		t.Errorf("want north=50.10 south=43.80 but have %+v", f.Bounds)
	}
	if f.Projection.Kind != iradar.ProjectionWGS84 {
		t.Errorf("want WGS84 projection but have %v", f.Projection.Kind)
	}

	ext, err := o.DecodeExtentOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	if ext.Height != h || ext.Width != w || ext.Bounds != f.Bounds {
		t.Errorf("extent decode disagrees with full decode: %+v", ext)
	}
}
