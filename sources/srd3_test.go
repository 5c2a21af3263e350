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
	"bytes"
	"testing"

	"github.com/imeteo/iradar"
)

func TestParseSRD3(t *testing.T) {
	payload := []byte{64, 65, 70, 64}
	var b bytes.Buffer
	b.WriteString("ncell: 4\noffset: 64\nstart: 12\nslope: 3\ntime: 202601281200\nDATA\n")
	b.Write(payload)

	h, p, err := parseSRD3(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if h.ncell != 4 || h.offset != 64 || h.start != 12 || h.slope != 3 {
		t.Errorf("want header {4 12 3 64} but have %+v", h)
	}
	if h.time != "202601281200" {
		t.Errorf("want time 202601281200 but have %q", h.time)
	}
	if !bytes.Equal(p, payload) {
		t.Errorf("want payload %v but have %v", payload, p)
	}
}

func TestParseSRD3SpaceSeparatedAndBlankTerminator(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("ncell 2\ntime 202601281200\n\n")
	b.Write([]byte{64, 100})

	h, p, err := parseSRD3(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	// Omitted quantization keys fall back to the defaults.
	if h.start != srd3DefaultStart || h.slope != srd3DefaultSlope || h.offset != srd3DefaultOffset {
		t.Errorf("want default quantization but have %+v", h)
	}
	if len(p) != 2 {
		t.Errorf("want 2 payload bytes but have %d", len(p))
	}
}

func TestParseSRD3ShortPayload(t *testing.T) {
	b := []byte("ncell: 10\nDATA\nxyz")
	if _, _, err := parseSRD3(b); err == nil {
		t.Error("want error for short payload but have nil")
	}
}

func TestParseSRD3MissingNcell(t *testing.T) {
	b := []byte("time: 202601281200\nDATA\n")
	if _, _, err := parseSRD3(b); err == nil {
		t.Error("want error for missing ncell but have nil")
	}
}

func TestSRD3Value(t *testing.T) {
	h := srd3Header{start: 12, slope: 3, offset: 64}
	cases := []struct {
		b    byte
		want float64
	}{
		{65, 15},
		{70, 30},
		{64, 12}, // the offset byte itself; callers map it to NaN
	}
	for _, c := range cases {
		if have := h.value(c.b); have != c.want {
			t.Errorf("value(%d): want %g but have %g", c.b, c.want, have)
		}
	}
}

func TestARSODecode(t *testing.T) {
	payload := make([]byte, arsoWidth*arsoHeight)
	for i := range payload {
		payload[i] = 64
	}
	payload[0] = 65  // 15 dBZ
	payload[10] = 80 // 60 dBZ

	var b bytes.Buffer
	b.WriteString("ncell: 120701\noffset: 64\nstart: 12\nslope: 3\ntime: 202601281200\nDATA\n")
	b.Write(payload)

	dir := t.TempDir()
	path := dir + "/si0-zm.srd"
	if err := writeFile(t, path, b.Bytes()); err != nil {
		t.Fatal(err)
	}

	a := newARSO(Options{TempDir: dir, Log: testLogger()}).(*arso)
	f, err := a.Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Height != arsoHeight || f.Width != arsoWidth {
		t.Fatalf("want %dx%d but have %dx%d", arsoHeight, arsoWidth, f.Height, f.Width)
	}
	if f.Timestamp != "20260128120000" {
		t.Errorf("want timestamp 20260128120000 but have %s", f.Timestamp)
	}
	if f.Data[0] != 15 || f.Data[10] != 60 {
		t.Errorf("want 15 and 60 dBZ but have %g and %g", f.Data[0], f.Data[10])
	}
	// The offset byte is no-precipitation, decoded as NaN.
	if !isNaN32(f.Data[1]) {
		t.Errorf("want NaN for offset byte but have %g", f.Data[1])
	}
	if f.Projection.Kind != iradar.ProjectionLCC {
		t.Errorf("want LCC projection but have %v", f.Projection.Kind)
	}
}
