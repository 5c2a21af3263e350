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

package iradarutil

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCommandTree(t *testing.T) {
	want := map[string]bool{
		"version": false, "fetch": false, "composite": false,
		"extent": false, "coverage-mask": false,
	}
	for _, cmd := range Root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("want subcommand %s but it is missing", name)
		}
	}
}

func TestFlagDefaults(t *testing.T) {
	if have := Cfg.GetString("output"); have != "output" {
		t.Errorf("want default output %q but have %q", "output", have)
	}
	if have := Cfg.GetInt("min-core-sources"); have != 3 {
		t.Errorf("want default min-core-sources 3 but have %d", have)
	}
	if have := Cfg.GetInt("cache-ttl"); have != 60 {
		t.Errorf("want default cache-ttl 60 but have %d", have)
	}
	if have := Cfg.GetFloat64("resolution"); have != 500 {
		t.Errorf("want default resolution 500 but have %v", have)
	}
	if have := Cfg.GetStringSlice("sources"); len(have) != 6 {
		t.Errorf("want 6 default sources but have %v", have)
	}
}

func TestParseTimeRange(t *testing.T) {
	Cfg.Set("backload", false)
	if r, err := parseTimeRange(); err != nil || r != nil {
		t.Errorf("want nil range without backload but have %v, %v", r, err)
	}

	Cfg.Set("backload", true)
	Cfg.Set("hours", 6)
	Cfg.Set("from", "")
	Cfg.Set("to", "")
	r, err := parseTimeRange()
	if err != nil {
		t.Fatal(err)
	}
	if d := r.End.Sub(r.Start); d != 6*time.Hour {
		t.Errorf("want 6h range but have %v", d)
	}

	Cfg.Set("hours", 0)
	Cfg.Set("from", "2026-08-26 06:00")
	Cfg.Set("to", "2026-08-26 12:00")
	r, err = parseTimeRange()
	if err != nil {
		t.Fatal(err)
	}
	if !r.Start.Equal(time.Date(2026, 8, 26, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("want 06:00 UTC start but have %v", r.Start)
	}

	// Inverted range.
	Cfg.Set("from", "2026-08-26 12:00")
	Cfg.Set("to", "2026-08-26 06:00")
	if _, err := parseTimeRange(); err == nil {
		t.Error("want error for inverted range but have nil")
	}

	// hours and from/to together.
	Cfg.Set("hours", 3)
	if _, err := parseTimeRange(); err == nil {
		t.Error("want error for hours with from/to but have nil")
	}

	Cfg.Set("backload", false)
	Cfg.Set("hours", 0)
	Cfg.Set("from", "")
	Cfg.Set("to", "")
}

func TestResolveSourcesRejectsUnknown(t *testing.T) {
	if _, err := resolveSources([]string{"dwd", "nosuch"}); err == nil {
		t.Error("want error for unknown source but have nil")
	}
	if _, err := resolveSources([]string{"dwd", "arso"}); err != nil {
		t.Errorf("want known sources accepted but have %v", err)
	}
}

func TestExtentSelection(t *testing.T) {
	Cfg.Set("source", "all")
	srcs, err := extentSelection()
	if err != nil {
		t.Fatal(err)
	}
	if len(srcs) != 6 {
		t.Errorf("want all 6 sources but have %v", srcs)
	}
	Cfg.Set("source", "omsz")
	srcs, err = extentSelection()
	if err != nil {
		t.Fatal(err)
	}
	if len(srcs) != 1 || srcs[0] != "omsz" {
		t.Errorf("want [omsz] but have %v", srcs)
	}
	Cfg.Set("source", "")
}

// Configuration errors must surface before any network activity;
// buildPipeline validates sources and grid dimensions up front.
func TestBuildPipelineValidation(t *testing.T) {
	Cfg.Set("disable-upload", true)
	Cfg.Set("output", t.TempDir())
	Cfg.Set("cache-dir", t.TempDir())
	defer func() {
		Cfg.Set("resolution", 500.0)
		Cfg.Set("disable-upload", false)
	}()

	Cfg.Set("resolution", 500.0)
	if _, err := buildPipeline(context.Background(), []string{"nosuch"}); err == nil {
		t.Error("want error for unknown source but have nil")
	}

	// A resolution fine enough to exceed the dimension cap.
	Cfg.Set("resolution", 1.0)
	_, err := buildPipeline(context.Background(), []string{"dwd"})
	if err == nil {
		t.Fatal("want error for oversized grid but have nil")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("want dimension error but have %v", err)
	}

	Cfg.Set("resolution", 500.0)
	p, err := buildPipeline(context.Background(), []string{"dwd", "shmu"})
	if err != nil {
		t.Fatal(err)
	}
	p.close()
}
