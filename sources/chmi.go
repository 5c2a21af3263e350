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

// The Czech national composite. Despite regular-looking WGS84
// corners, the data grid is a native Mercator with a nonzero false
// easting and northing, so reprojection must go through the
// projdef in the file.
const (
	chmiBaseURL = "https://opendata.chmi.cz/meteorology/weather/radar/composite/maxz/hdf5"
	chmiCadence = 5 * time.Minute
)

var chmiListingRE = regexp.MustCompile(`T_PABV23_C_OKPR_(\d{14})\.hdf`)

type chmi struct {
	adapter
}

func newCHMI(opts Options) Adapter {
	return &chmi{adapter: newAdapter("chmi", "maxz", httpClient, opts)}
}

func (c *chmi) url(ts14 string) string {
	return fmt.Sprintf("%s/T_PABV23_C_OKPR_%s.hdf", chmiBaseURL, ts14)
}

func (c *chmi) ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error) {
	var body []byte
	err := c.retry(ctx, "list maxz", func() error {
		b, _, err := fetch(ctx, c.client, chmiBaseURL+"/", listingTimeout)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err == nil {
		seen := make(map[string]bool)
		var ts14s []string
		for _, m := range chmiListingRE.FindAllSubmatch(body, -1) {
			ts14, err := iradar.NormalizeTimestamp(string(m[1]))
			if err != nil || seen[ts14] {
				continue
			}
			seen[ts14] = true
			ts14s = append(ts14s, ts14)
		}
		if len(ts14s) > 0 {
			sort.Sort(sort.Reverse(sort.StringSlice(ts14s)))
			return filterTimestamps(ts14s, count, within), nil
		}
		c.log.WithField("source", c.name).Warn("directory listing yielded no timestamps, probing")
	} else {
		c.log.WithField("source", c.name).Warnf("directory listing failed, probing: %v", err)
	}

	return probeTimestamps(ctx, c.client, c.url, count, 24, chmiCadence, within)
}

func (c *chmi) Download(ctx context.Context, timestamps, products []string) []DownloadResult {
	timestamps, err := normalizeMany(timestamps)
	if err != nil {
		return []DownloadResult{{Source: c.name, Err: err}}
	}
	var out []DownloadResult
	for _, ts := range timestamps {
		res := DownloadResult{Source: c.name, Timestamp: ts, Product: c.product}
		if ts == Latest {
			res.Err = fmt.Errorf("sources: chmi has no latest alias")
			out = append(out, res)
			continue
		}
		out = append(out, c.download(ctx, ts, c.product, c.url(ts), "chmi-*.hdf"))
	}
	return out
}

func (c *chmi) Decode(path string) (*iradar.RadarFrame, error) {
	return c.decodeODIM(path, c.product, defaultODIMLayout)
}

func (c *chmi) DecodeExtentOnly(path string) (*iradar.ExtentInfo, error) {
	return c.decodeODIMExtent(path)
}

func (c *chmi) NativeExtent() iradar.NativeExtent {
	b := iradar.WGS84Bounds{West: 11.27, East: 20.77, South: 48.05, North: 51.45}
	wx, sy := iradar.LonLatToMercator(b.West, b.South)
	ex, ny := iradar.LonLatToMercator(b.East, b.North)
	return iradar.NativeExtent{
		Bounds:      b,
		Mercator:    iradar.MercatorExtent{Xmin: wx, Ymin: sy, Xmax: ex, Ymax: ny},
		Height:      528,
		Width:       728,
		ResolutionM: 1000,
		Projection:  "mercator",
	}
}
