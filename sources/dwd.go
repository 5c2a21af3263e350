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
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/imeteo/iradar"
)

// The German national composite from the DWD open-data server.
// Timestamps come from an HTML directory listing; when the listing
// cannot be parsed the adapter falls back to speculative HEAD
// probes. The grid is polar stereographic; the corner coordinates
// in the file are informational and reprojection must go through
// the projdef.
const (
	dwdBaseURL = "https://opendata.dwd.de/weather/radar/composite"
	dwdCadence = 5 * time.Minute
)

// dwdListingRE captures the YYYYMMDD_HHMM timestamp of one
// composite file in the directory listing.
var dwdListingRE = regexp.MustCompile(`composite_([a-z0-9]+)_(\d{8}_\d{4})-hd5`)

type dwd struct {
	adapter
}

func newDWD(opts Options) Adapter {
	return &dwd{adapter: newAdapter("dwd", "pg", httpClient, opts)}
}

func (d *dwd) url(product, ts14 string) string {
	name := Latest
	if ts14 != Latest {
		name = ts14[:8] + "_" + ts14[8:12]
	}
	return fmt.Sprintf("%s/%s/composite_%s_%s-hd5", dwdBaseURL, product, product, name)
}

func (d *dwd) ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error) {
	product := d.resolveProducts(products)[0]

	var body []byte
	err := d.retry(ctx, "list "+product, func() error {
		b, _, err := fetch(ctx, d.client, fmt.Sprintf("%s/%s/", dwdBaseURL, product), listingTimeout)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err == nil {
		if ts14s := parseDWDListing(body, product); len(ts14s) > 0 {
			return filterTimestamps(ts14s, count, within), nil
		}
		d.log.WithField("source", d.name).Warn("directory listing yielded no timestamps, probing")
	} else {
		d.log.WithField("source", d.name).Warnf("directory listing failed, probing: %v", err)
	}

	return probeTimestamps(ctx, d.client, func(ts14 string) string {
		return d.url(product, ts14)
	}, count, 24, dwdCadence, within)
}

// parseDWDListing extracts the timestamps for one product from a
// directory listing, newest first, deduplicated.
func parseDWDListing(body []byte, product string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range dwdListingRE.FindAllSubmatch(body, -1) {
		if string(m[1]) != product {
			continue
		}
		ts14, err := iradar.NormalizeTimestamp(string(m[2]))
		if err != nil || seen[ts14] {
			continue
		}
		seen[ts14] = true
		out = append(out, ts14)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

func (d *dwd) Download(ctx context.Context, timestamps, products []string) []DownloadResult {
	timestamps, err := normalizeMany(timestamps)
	if err != nil {
		return []DownloadResult{{Source: d.name, Err: err}}
	}
	var out []DownloadResult
	for _, product := range d.resolveProducts(products) {
		for _, ts := range timestamps {
			out = append(out, d.download(ctx, ts, product, d.url(product, ts), "dwd-*.hdf"))
		}
	}
	return out
}

func (d *dwd) Decode(path string) (*iradar.RadarFrame, error) {
	// The real timestamp comes from the ODIM what group, which
	// also resolves the Latest alias.
	return d.decodeODIM(path, d.product, defaultODIMLayout)
}

func (d *dwd) DecodeExtentOnly(path string) (*iradar.ExtentInfo, error) {
	return d.decodeODIMExtent(path)
}

func (d *dwd) NativeExtent() iradar.NativeExtent {
	b := iradar.WGS84Bounds{West: 3.57, East: 18.73, South: 45.70, North: 55.85}
	wx, sy := iradar.LonLatToMercator(b.West, b.South)
	ex, ny := iradar.LonLatToMercator(b.East, b.North)
	return iradar.NativeExtent{
		Bounds:      b,
		Mercator:    iradar.MercatorExtent{Xmin: wx, Ymin: sy, Xmax: ex, Ymax: ny},
		Height:      1200,
		Width:       1100,
		ResolutionM: 1000,
		Projection:  "stereographic",
	}
}
