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
	"testing"
	"time"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"20260128", "20260128000000"},
		{"202601281200", "20260128120000"},
		{"20260128_1200", "20260128120000"},
		{"20260128120000", "20260128120000"},
	}
	for _, test := range tests {
		have, err := NormalizeTimestamp(test.in)
		if err != nil {
			t.Fatalf("%s: %v", test.in, err)
		}
		if have != test.want {
			t.Errorf("%s: want %s but have %s", test.in, test.want, have)
		}
		// Normalization must be idempotent.
		again, err := NormalizeTimestamp(have)
		if err != nil {
			t.Fatalf("%s: renormalizing: %v", test.in, err)
		}
		if again != have {
			t.Errorf("%s: normalization not idempotent: %s != %s", test.in, again, have)
		}
	}
}

func TestNormalizeTimestampInvalid(t *testing.T) {
	for _, bad := range []string{"", "2026", "2026012", "20261301120000", "2026012a120000", "20260128_120000"} {
		if _, err := NormalizeTimestamp(bad); err == nil {
			t.Errorf("%q: want error but have nil", bad)
		}
	}
}

func TestTimestampUnix(t *testing.T) {
	have, err := TimestampUnix("20260128120000")
	if err != nil {
		t.Fatal(err)
	}
	const want = 1769601600
	if have != want {
		t.Errorf("want %d but have %d", want, have)
	}
}

func TestTs12(t *testing.T) {
	if have := Ts12("20260128120000"); have != "202601281200" {
		t.Errorf("want 202601281200 but have %s", have)
	}
	if have := Ts12("202601281200"); have != "202601281200" {
		t.Errorf("want 202601281200 but have %s", have)
	}
}

func TestTimeRange(t *testing.T) {
	start := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	r := TimeRange{Start: start, End: start.Add(time.Hour)}
	if err := r.Check(); err != nil {
		t.Fatal(err)
	}
	if !r.Contains(start) {
		t.Error("range should contain its start")
	}
	if r.Contains(start.Add(time.Hour)) {
		t.Error("range should not contain its end")
	}
	if err := (TimeRange{Start: start, End: start}).Check(); err == nil {
		t.Error("empty range: want error but have nil")
	}
}
