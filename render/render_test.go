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

package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"
)

func TestColor(t *testing.T) {
	nan := float32(math.NaN())
	if c := Color(nan); c.A != 0 {
		t.Errorf("want transparent for NaN but have %+v", c)
	}
	if c := Color(-20); c.A != 0 {
		t.Errorf("want transparent below first stop but have %+v", c)
	}
	// Values inside a band get that band's color.
	c0 := Color(0)
	if c0.A == 0 {
		t.Error("want opaque color at first stop")
	}
	if Color(2) != c0 {
		t.Error("want same color inside the first band")
	}
	// Monotone bands: a much larger value maps to a later stop.
	if Color(60) == c0 {
		t.Error("want different color for 60 dBZ")
	}
	// Above the last stop the last color applies.
	if Color(85) != Color(80) {
		t.Error("want last stop color above the ramp")
	}
}

func TestRenderAndEncode(t *testing.T) {
	nan := float32(math.NaN())
	data := []float32{nan, 0, 30, 60, nan, 12}
	img, err := Render(data, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("want 3x2 image but have %v", img.Bounds())
	}
	if img.RGBAAt(0, 0).A != 0 {
		t.Error("want transparent NaN pixel")
	}
	if img.RGBAAt(2, 0).A == 0 {
		t.Error("want opaque pixel for 30 dBZ")
	}

	b, err := EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("want bounds %v but have %v", img.Bounds(), decoded.Bounds())
	}
}

func TestRenderShapeMismatch(t *testing.T) {
	if _, err := Render(make([]float32, 5), 2, 3); err == nil {
		t.Error("want error for mismatched shape but have nil")
	}
}

func TestMaskImage(t *testing.T) {
	covered := []bool{true, false, false, true}
	img, err := MaskImage(covered, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if img.RGBAAt(0, 0).A != 0 {
		t.Error("want covered pixel transparent")
	}
	grey := img.RGBAAt(1, 0)
	if grey.R != 128 || grey.G != 128 || grey.B != 128 || grey.A != 255 {
		t.Errorf("want opaque grey for uncovered pixel but have %+v", grey)
	}
}
