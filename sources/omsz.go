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
	"archive/zip"
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/internal/memfile"
)

// The Hungarian national composite: a zipped netCDF on a plain
// latitude/longitude grid. The reflectivity variable is stored as
// netCDF bytes encoding unsigned values 0..255; cdf reads them
// into []uint8 directly. La1 is the northern boundary; latitudes
// decrease southward.
const (
	omszBaseURL = "https://odp.met.hu/weather/radar/composite"
	omszCadence = 5 * time.Minute
)

var omszListingRE = regexp.MustCompile(`RADAR_COMP_(\d{14})\.zip`)

// omszVariables are the reflectivity variable names seen in the
// product, in preference order.
var omszVariables = []string{"refl2D", "refl2D_pscappi", "refl3D"}

const (
	// Raw 255 is outside radar coverage; raw 0 is the static
	// background mask. Both decode to NaN.
	omszNodata   = 255
	omszUndetect = 0
)

// omszDBZ converts one raw byte to dBZ.
func omszDBZ(raw uint8) float32 {
	return float32(raw)/2 - 32
}

type omsz struct {
	adapter
}

func newOMSZ(opts Options) Adapter {
	return &omsz{adapter: newAdapter("omsz", "refl2d", httpClient, opts)}
}

func (o *omsz) url(ts14 string) string {
	return fmt.Sprintf("%s/RADAR_COMP_%s.zip", omszBaseURL, ts14)
}

func (o *omsz) ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error) {
	var body []byte
	err := o.retry(ctx, "list composite", func() error {
		b, _, err := fetch(ctx, o.client, omszBaseURL+"/", listingTimeout)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err == nil {
		seen := make(map[string]bool)
		var ts14s []string
		for _, m := range omszListingRE.FindAllSubmatch(body, -1) {
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
		o.log.WithField("source", o.name).Warn("directory listing yielded no timestamps, probing")
	} else {
		o.log.WithField("source", o.name).Warnf("directory listing failed, probing: %v", err)
	}

	return probeTimestamps(ctx, o.client, o.url, count, 24, omszCadence, within)
}

func (o *omsz) Download(ctx context.Context, timestamps, products []string) []DownloadResult {
	timestamps, err := normalizeMany(timestamps)
	if err != nil {
		return []DownloadResult{{Source: o.name, Err: err}}
	}
	var out []DownloadResult
	for _, ts := range timestamps {
		res := DownloadResult{Source: o.name, Timestamp: ts, Product: o.product}
		if ts == Latest {
			res.Err = fmt.Errorf("sources: omsz has no latest alias")
			out = append(out, res)
			continue
		}
		out = append(out, o.download(ctx, ts, o.product, o.url(ts), "omsz-*.zip"))
	}
	return out
}

// openContained extracts the first netCDF entry from the downloaded
// zip into memory.
func openContained(path string) (*cdf.File, string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("sources: opening omsz archive %s: %v", path, err)
	}
	defer zr.Close()
	for _, entry := range zr.File {
		if !strings.HasSuffix(entry.Name, ".nc") {
			continue
		}
		r, err := entry.Open()
		if err != nil {
			return nil, "", fmt.Errorf("sources: opening archive entry %s: %v", entry.Name, err)
		}
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, "", fmt.Errorf("sources: reading archive entry %s: %v", entry.Name, err)
		}
		f, err := cdf.Open(memfile.New(b))
		if err != nil {
			return nil, "", fmt.Errorf("sources: opening netCDF %s: %v", entry.Name, err)
		}
		return f, entry.Name, nil
	}
	return nil, "", fmt.Errorf("sources: no netCDF entry in %s", path)
}

// attrFloat reads a numeric netCDF attribute regardless of its
// stored width.
func attrFloat(f *cdf.File, name string) (float64, error) {
	switch v := f.Header.GetAttribute("", name).(type) {
	case []float64:
		if len(v) > 0 {
			return v[0], nil
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), nil
		}
	case []int32:
		if len(v) > 0 {
			return float64(v[0]), nil
		}
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	}
	return 0, fmt.Errorf("sources: netCDF attribute %q missing or non-numeric", name)
}

func omszBounds(f *cdf.File) (iradar.WGS84Bounds, error) {
	var b iradar.WGS84Bounds
	north, err := attrFloat(f, "La1")
	if err != nil {
		return b, err
	}
	west, err := attrFloat(f, "Lo1")
	if err != nil {
		return b, err
	}
	south, err := attrFloat(f, "La2")
	if err != nil {
		return b, err
	}
	east, err := attrFloat(f, "Lo2")
	if err != nil {
		return b, err
	}
	// La1 is the north boundary.
	if south > north {
		return b, fmt.Errorf("sources: omsz latitudes inverted (La1=%g La2=%g)", north, south)
	}
	return iradar.WGS84Bounds{West: west, East: east, South: south, North: north}, nil
}

func omszVariable(f *cdf.File) (string, []int, error) {
	for _, name := range omszVariables {
		lengths := f.Header.Lengths(name)
		if len(lengths) >= 2 {
			return name, lengths, nil
		}
	}
	return "", nil, fmt.Errorf("sources: no reflectivity variable (tried %v)", omszVariables)
}

var omszNameTimestampRE = regexp.MustCompile(`(\d{12,14})`)

func (o *omsz) Decode(path string) (*iradar.RadarFrame, error) {
	f, entryName, err := openContained(path)
	if err != nil {
		return nil, err
	}
	name, lengths, err := omszVariable(f)
	if err != nil {
		return nil, err
	}

	// refl3D carries vertical levels; the composite is the
	// column maximum.
	levels := 1
	height, width := lengths[0], lengths[1]
	if len(lengths) == 3 {
		levels, height, width = lengths[0], lengths[1], lengths[2]
	}
	if height <= 0 || width <= 0 || height > iradar.MaxGridDimension || width > iradar.MaxGridDimension {
		return nil, fmt.Errorf("sources: omsz grid %dx%d out of range", height, width)
	}

	// NC_BYTE comes back as unsigned bytes; cdf rejects any other
	// destination slice type.
	raw := make([]uint8, levels*height*width)
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(raw); err != nil {
		return nil, fmt.Errorf("sources: reading %s: %v", name, err)
	}

	nan := float32(math.NaN())
	data := make([]float32, height*width)
	for i := range data {
		data[i] = nan
	}
	for l := 0; l < levels; l++ {
		plane := raw[l*height*width : (l+1)*height*width]
		for i, v := range plane {
			if v == omszNodata || v == omszUndetect {
				continue
			}
			dbz := iradar.ClipDBZ(omszDBZ(v))
			if math.IsNaN(float64(data[i])) || dbz > data[i] {
				data[i] = dbz
			}
		}
	}

	bounds, err := omszBounds(f)
	if err != nil {
		return nil, err
	}
	ts, err := omszTimestamp(f, entryName)
	if err != nil {
		return nil, err
	}

	frame := &iradar.RadarFrame{
		Data:       data,
		Height:     height,
		Width:      width,
		Bounds:     bounds,
		Projection: iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84},
		Meta: iradar.FrameMeta{
			Product:  o.product,
			Quantity: "DBZH",
			Source:   o.name,
			Units:    "dBZ",
			Nodata:   omszNodata,
			Gain:     0.5,
			Offset:   -32,
		},
		Timestamp: ts,
	}
	if err := frame.Check(); err != nil {
		return nil, err
	}
	return frame, nil
}

// omszTimestamp takes the acquisition time from the archive entry
// name, falling back to the global time attribute.
func omszTimestamp(f *cdf.File, entryName string) (string, error) {
	if m := omszNameTimestampRE.FindStringSubmatch(entryName); m != nil {
		if ts, err := iradar.NormalizeTimestamp(m[1]); err == nil {
			return ts, nil
		}
	}
	if v, ok := f.Header.GetAttribute("", "time").(string); ok {
		if ts, err := iradar.NormalizeTimestamp(strings.TrimSpace(v)); err == nil {
			return ts, nil
		}
	}
	return "", fmt.Errorf("sources: no acquisition time in omsz file %s", entryName)
}

func (o *omsz) DecodeExtentOnly(path string) (*iradar.ExtentInfo, error) {
	f, _, err := openContained(path)
	if err != nil {
		return nil, err
	}
	_, lengths, err := omszVariable(f)
	if err != nil {
		return nil, err
	}
	height, width := lengths[0], lengths[1]
	if len(lengths) == 3 {
		height, width = lengths[1], lengths[2]
	}
	bounds, err := omszBounds(f)
	if err != nil {
		return nil, err
	}
	return &iradar.ExtentInfo{
		Bounds:     bounds,
		Height:     height,
		Width:      width,
		Projection: iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84},
	}, nil
}

func (o *omsz) NativeExtent() iradar.NativeExtent {
	b := iradar.WGS84Bounds{West: 13.45, East: 26.80, South: 43.80, North: 50.10}
	wx, sy := iradar.LonLatToMercator(b.West, b.South)
	ex, ny := iradar.LonLatToMercator(b.East, b.North)
	return iradar.NativeExtent{
		Bounds:      b,
		Mercator:    iradar.MercatorExtent{Xmin: wx, Ymin: sy, Xmax: ex, Ymax: ny},
		Height:      600,
		Width:       900,
		ResolutionM: 1000,
		Projection:  "wgs84",
	}
}
