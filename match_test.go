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
	"reflect"
	"testing"
	"time"
)

func entry(sources ...string) map[string]string {
	m := make(map[string]string)
	for _, s := range sources {
		m[s] = "/tmp/" + s
	}
	return m
}

func TestMatchTimestampsFull(t *testing.T) {
	available := map[string]map[string]string{
		"20260128120000": entry("dwd", "shmu", "chmi", "omsz", "imgw", "arso"),
		"20260128115500": entry("dwd", "shmu", "chmi", "omsz", "imgw", "arso"),
	}
	sources := []string{"dwd", "shmu", "chmi", "omsz", "imgw", "arso"}
	matches := MatchTimestamps(available, sources, MatcherConfig{
		Tolerance:  2 * time.Minute,
		MinSources: 6,
		MaxCount:   10,
	})
	if len(matches) != 2 {
		t.Fatalf("want 2 matches but have %d", len(matches))
	}
	if matches[0].Timestamp != "20260128120000" {
		t.Errorf("matches must be newest first; have %s", matches[0].Timestamp)
	}
	if len(matches[0].Files) != 6 {
		t.Errorf("want 6 files but have %d", len(matches[0].Files))
	}
}

func TestMatchTimestampsTolerance(t *testing.T) {
	// SHMU delivered one minute late; ARSO is nine minutes old.
	available := map[string]map[string]string{
		"20260128120000": entry("dwd", "chmi"),
		"20260128120100": entry("shmu"),
		"20260128115100": entry("arso"),
	}
	sources := []string{"dwd", "shmu", "chmi", "arso"}
	matches := MatchTimestamps(available, sources, MatcherConfig{
		Tolerance:  2 * time.Minute,
		MinSources: 3,
	})
	if len(matches) != 1 {
		t.Fatalf("want 1 match but have %d", len(matches))
	}
	m := matches[0]
	if m.Timestamp != "20260128120000" {
		t.Fatalf("want candidate 20260128120000 but have %s", m.Timestamp)
	}
	wantFiles := map[string]string{"dwd": "/tmp/dwd", "chmi": "/tmp/chmi", "shmu": "/tmp/shmu"}
	if !reflect.DeepEqual(m.Files, wantFiles) {
		t.Errorf("want %v but have %v", wantFiles, m.Files)
	}
	if m.SourceTimestamps["shmu"] != "20260128120100" {
		t.Errorf("want shmu matched at 20260128120100 but have %s", m.SourceTimestamps["shmu"])
	}
}

func TestMatchTimestampsPrefersCloser(t *testing.T) {
	available := map[string]map[string]string{
		"20260128120000": entry("dwd"),
		"20260128120100": {"shmu": "/close"},
		"20260128115800": {"shmu": "/far"},
	}
	matches := MatchTimestamps(available, []string{"dwd", "shmu"}, MatcherConfig{
		Tolerance:  2 * time.Minute,
		MinSources: 2,
		MaxCount:   1,
	})
	if len(matches) != 1 {
		t.Fatalf("want 1 match but have %d", len(matches))
	}
	if have := matches[0].Files["shmu"]; have != "/close" {
		t.Errorf("want /close but have %s", have)
	}
}

func TestMatchTimestampsNonOverlapping(t *testing.T) {
	// Two candidates within one minute of each other: only the
	// newer survives.
	available := map[string]map[string]string{
		"20260128120000": entry("dwd", "shmu"),
		"20260128120030": entry("dwd", "shmu"),
		"20260128115000": entry("dwd", "shmu"),
	}
	matches := MatchTimestamps(available, []string{"dwd", "shmu"}, MatcherConfig{
		Tolerance:  2 * time.Minute,
		MinSources: 2,
	})
	if len(matches) != 2 {
		t.Fatalf("want 2 matches but have %d", len(matches))
	}
	if matches[0].Timestamp != "20260128120030" || matches[1].Timestamp != "20260128115000" {
		t.Errorf("have %s, %s", matches[0].Timestamp, matches[1].Timestamp)
	}
}

func TestMatchWithDegradationDropsARSO(t *testing.T) {
	available := map[string]map[string]string{
		"20260128120000": entry("dwd", "shmu", "chmi", "omsz"),
	}
	sources := []string{"dwd", "shmu", "chmi", "omsz", "arso"}
	matches := MatchWithDegradation(available, sources, 2*time.Minute, 3, 6, nil)
	if len(matches) != 1 {
		t.Fatalf("want 1 match but have %d", len(matches))
	}
	if _, ok := matches[0].Files["arso"]; ok {
		t.Error("arso should have been dropped")
	}
	if len(matches[0].Files) != 4 {
		t.Errorf("want 4 files but have %d", len(matches[0].Files))
	}
}

func TestMatchWithDegradationRelaxesQuorum(t *testing.T) {
	// No ARSO in play; one core source missing entirely.
	available := map[string]map[string]string{
		"20260128120000": entry("dwd", "shmu", "chmi", "omsz"),
	}
	sources := []string{"dwd", "shmu", "chmi", "omsz", "imgw"}
	matches := MatchWithDegradation(available, sources, 2*time.Minute, 3, 6, nil)
	if len(matches) != 1 {
		t.Fatalf("want 1 match but have %d", len(matches))
	}
	if len(matches[0].Files) != 4 {
		t.Errorf("want 4 files but have %d", len(matches[0].Files))
	}
}

func TestMatchWithDegradationNoMatch(t *testing.T) {
	available := map[string]map[string]string{
		"20260128120000": entry("dwd"),
	}
	sources := []string{"dwd", "shmu", "chmi", "omsz", "imgw"}
	matches := MatchWithDegradation(available, sources, 2*time.Minute, 3, 6, nil)
	if len(matches) != 0 {
		t.Fatalf("want 0 matches but have %d", len(matches))
	}
}
