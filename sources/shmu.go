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
	"time"

	"github.com/imeteo/iradar"
)

// The Slovak national composite. There is no directory listing;
// availability is discovered by HEAD probes against the URL
// template. The grid is a custom Mercator whose published
// xscale/yscale attributes are wrong, so pixel size is always
// derived from the corner coordinates.
const (
	shmuBaseURL = "https://opendata.shmu.sk/skcomp"
	shmuCadence = 5 * time.Minute
)

// shmuProductCodes maps product names to the bulletin codes in the
// file names.
var shmuProductCodes = map[string]string{
	"zmax":     "PABV",
	"cappi2km": "PANV",
	"etop":     "PADV",
	"pac01":    "PASV",
}

type shmu struct {
	adapter
}

func newSHMU(opts Options) Adapter {
	return &shmu{adapter: newAdapter("shmu", "zmax", insecureClient, opts)}
}

func (s *shmu) url(product, ts14 string) (string, error) {
	code, ok := shmuProductCodes[product]
	if !ok {
		return "", fmt.Errorf("sources: unknown shmu product %q", product)
	}
	return fmt.Sprintf("%s/%s/%s/T_%s22_C_LZIB_%s.hdf", shmuBaseURL, product, ts14[:8], code, ts14), nil
}

func (s *shmu) ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error) {
	product := s.resolveProducts(products)[0]
	if _, ok := shmuProductCodes[product]; !ok {
		return nil, fmt.Errorf("sources: unknown shmu product %q", product)
	}
	return probeTimestamps(ctx, s.client, func(ts14 string) string {
		u, _ := s.url(product, ts14)
		return u
	}, count, 24, shmuCadence, within)
}

func (s *shmu) Download(ctx context.Context, timestamps, products []string) []DownloadResult {
	timestamps, err := normalizeMany(timestamps)
	if err != nil {
		return []DownloadResult{{Source: s.name, Err: err}}
	}
	var out []DownloadResult
	for _, product := range s.resolveProducts(products) {
		for _, ts := range timestamps {
			res := DownloadResult{Source: s.name, Timestamp: ts, Product: product}
			if ts == Latest {
				res.Err = fmt.Errorf("sources: shmu has no latest alias")
				out = append(out, res)
				continue
			}
			u, err := s.url(product, ts)
			if err != nil {
				res.Err = err
				out = append(out, res)
				continue
			}
			out = append(out, s.download(ctx, ts, product, u, "shmu-*.hdf"))
		}
	}
	return out
}

func (s *shmu) Decode(path string) (*iradar.RadarFrame, error) {
	return s.decodeODIM(path, s.product, defaultODIMLayout)
}

func (s *shmu) DecodeExtentOnly(path string) (*iradar.ExtentInfo, error) {
	return s.decodeODIMExtent(path)
}

func (s *shmu) NativeExtent() iradar.NativeExtent {
	b := iradar.WGS84Bounds{West: 13.60, East: 23.80, South: 46.05, North: 50.70}
	wx, sy := iradar.LonLatToMercator(b.West, b.South)
	ex, ny := iradar.LonLatToMercator(b.East, b.North)
	return iradar.NativeExtent{
		Bounds:      b,
		Mercator:    iradar.MercatorExtent{Xmin: wx, Ymin: sy, Xmax: ex, Ymax: ny},
		Height:      560,
		Width:       790,
		ResolutionM: 1000,
		Projection:  "mercator",
	}
}
