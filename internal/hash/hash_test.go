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
along with iRadar.  If not, see <http://www.gnu.org/licenses/>.*/

package hash

import (
	"math"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	type bounds struct{ West, East, South, North float64 }
	b := bounds{2.5, 26.4, 44, 56.2}
	if Hash(b) != Hash(b) {
		t.Error("hash of identical values should be identical")
	}
	if Hash(b) == Hash(bounds{2.5, 26.4, 44, 56.3}) {
		t.Error("hash of different values should differ")
	}
}

func TestHashNaN(t *testing.T) {
	// gob cannot encode NaN; the spew fallback must still give a
	// stable key.
	type v struct{ X float64 }
	a := v{math.NaN()}
	if Hash(a) != Hash(a) {
		t.Error("hash of NaN-carrying values should be stable")
	}
}

func TestHash8(t *testing.T) {
	if len(Hash8("something")) != 8 {
		t.Errorf("want 8 characters but have %d", len(Hash8("something")))
	}
}
