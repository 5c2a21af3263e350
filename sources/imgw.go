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
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/imeteo/iradar"
)

// The Polish national composite. The catalog is a JSON API on the
// public-data host, but the files themselves are served from a
// different datastore path. Scaling lives in dataset1/what, not
// dataset1/data1/what, and the datastore answers missing files
// with an HTML error page under status 200, which the download
// path treats as a permanent failure.
const (
	imgwCatalogURL  = "https://danepubliczne.imgw.pl/api/data/product/id"
	imgwDownloadURL = "https://danepubliczne.imgw.pl/datastore/getfiledown/Oper/Polrad/Produkty/HVD"
	imgwProductID   = "HVD"
)

var imgwFileRE = regexp.MustCompile(`(\d{14})`)

// imgwLayout: scaling in dataset1/what first.
var imgwLayout = odimLayout{
	scaleGroups: []string{"/dataset1/what", "/dataset1/data1/what"},
}

type imgw struct {
	adapter
}

func newIMGW(opts Options) Adapter {
	return &imgw{adapter: newAdapter("imgw", "cmax", httpClient, opts)}
}

func (w *imgw) fileName(ts14 string) string {
	return fmt.Sprintf("%s_%s.hdf", imgwProductID, ts14)
}

// catalogEntries tolerates both catalog shapes the API has served:
// a plain array of file names and an array of objects with a file
// field.
func catalogEntries(body []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(body, &names); err == nil {
		return names, nil
	}
	var objs []struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(body, &objs); err != nil {
		return nil, fmt.Errorf("sources: parsing imgw catalog: %v", err)
	}
	names = make([]string, 0, len(objs))
	for _, o := range objs {
		names = append(names, o.File)
	}
	return names, nil
}

func (w *imgw) ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error) {
	var body []byte
	err := w.retry(ctx, "list catalog", func() error {
		b, _, err := fetch(ctx, w.client, fmt.Sprintf("%s/%s", imgwCatalogURL, imgwProductID), listingTimeout)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	names, err := catalogEntries(body)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ts14s []string
	for _, name := range names {
		m := imgwFileRE.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		ts14, err := iradar.NormalizeTimestamp(m[1])
		if err != nil || seen[ts14] {
			continue
		}
		seen[ts14] = true
		ts14s = append(ts14s, ts14)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ts14s)))
	return filterTimestamps(ts14s, count, within), nil
}

func (w *imgw) Download(ctx context.Context, timestamps, products []string) []DownloadResult {
	timestamps, err := normalizeMany(timestamps)
	if err != nil {
		return []DownloadResult{{Source: w.name, Err: err}}
	}
	var out []DownloadResult
	for _, ts := range timestamps {
		res := DownloadResult{Source: w.name, Timestamp: ts, Product: w.product}
		if ts == Latest {
			res.Err = fmt.Errorf("sources: imgw has no latest alias")
			out = append(out, res)
			continue
		}
		url := fmt.Sprintf("%s/%s", imgwDownloadURL, w.fileName(ts))
		out = append(out, w.download(ctx, ts, w.product, url, "imgw-*.hdf"))
	}
	return out
}

func (w *imgw) Decode(path string) (*iradar.RadarFrame, error) {
	return w.decodeODIM(path, w.product, imgwLayout)
}

func (w *imgw) DecodeExtentOnly(path string) (*iradar.ExtentInfo, error) {
	return w.decodeODIMExtent(path)
}

func (w *imgw) NativeExtent() iradar.NativeExtent {
	b := iradar.WGS84Bounds{West: 11.80, East: 26.40, South: 47.95, North: 56.20}
	wx, sy := iradar.LonLatToMercator(b.West, b.South)
	ex, ny := iradar.LonLatToMercator(b.East, b.North)
	return iradar.NativeExtent{
		Bounds:      b,
		Mercator:    iradar.MercatorExtent{Xmin: wx, Ymin: sy, Xmax: ex, Ymax: ny},
		Height:      800,
		Width:       900,
		ResolutionM: 1000,
		Projection:  "mercator",
	}
}
