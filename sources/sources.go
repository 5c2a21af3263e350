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

// Package sources holds the provider adapters: one per national
// weather service, all satisfying the same contract. An adapter
// knows how to probe the provider's catalog, download raw frames,
// and decode them into the canonical radar frame.
package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/imeteo/iradar"
	"github.com/sirupsen/logrus"
)

// Latest is the timestamp sentinel for a provider's "latest" alias;
// the real timestamp is read from the file after download.
const Latest = "LATEST"

// DownloadResult is the outcome of one (timestamp, product)
// download. Err is set instead of returned so a single failure
// cannot abort a batch; the orchestrator degrades around it.
type DownloadResult struct {
	Source          string
	Timestamp       string
	Product         string
	Path            string
	CachedInSession bool
	Err             error
}

// An Adapter fetches and decodes one provider's composite product.
type Adapter interface {
	// Name is the short source identifier, matching ^[a-z]{2,10}$.
	Name() string
	// Country is the output folder name for this source's PNGs.
	Country() string
	DefaultProduct() string

	// ListAvailableTimestamps returns up to count 14-digit
	// timestamps, newest first, optionally restricted to a
	// half-open time range.
	ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error)
	// Download fetches the given (timestamp, product) pairs,
	// returning one result per pair. Files already fetched in
	// this run come from the session cache.
	Download(ctx context.Context, timestamps, products []string) []DownloadResult
	// Decode reads a downloaded file into a canonical frame.
	Decode(path string) (*iradar.RadarFrame, error)
	// DecodeExtentOnly reads only the geometry metadata of a
	// file; it must not load the data array.
	DecodeExtentOnly(path string) (*iradar.ExtentInfo, error)
	// NativeExtent is the static provider footprint.
	NativeExtent() iradar.NativeExtent
	// CleanupTempFiles removes this run's temporary files and
	// returns how many were deleted.
	CleanupTempFiles() int
}

// Options configures adapter construction.
type Options struct {
	// TempDir is where downloaded files are staged. Empty means
	// the system temp directory.
	TempDir string
	Log     logrus.FieldLogger
}

type factory func(Options) Adapter

var registry = map[string]factory{
	"dwd":  newDWD,
	"shmu": newSHMU,
	"chmi": newCHMI,
	"arso": newARSO,
	"omsz": newOMSZ,
	"imgw": newIMGW,
}

// countries maps source names to output folder names.
var countries = map[string]string{
	"dwd":  "germany",
	"shmu": "slovakia",
	"chmi": "czechia",
	"arso": "slovenia",
	"omsz": "hungary",
	"imgw": "poland",
}

// New creates the adapter for a source name.
func New(name string, opts Options) (Adapter, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("sources: unknown source %q (have %v)", name, Names())
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return f(opts), nil
}

// Names returns all registered source names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Country returns the output folder name for a source.
func Country(source string) (string, error) {
	c, ok := countries[source]
	if !ok {
		return "", fmt.Errorf("sources: unknown source %q", source)
	}
	return c, nil
}
