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
	"math"
	"os"

	"github.com/imeteo/iradar"
)

// The Slovenian composite: a single SRD-3 file on a Lambert
// conformal conic grid. The provider keeps no archive, only the
// current frame, which is why decoded frames are pushed into the
// processed-data cache immediately after download. The whole grid
// is radar coverage; the offset byte means "no precipitation
// detected", not "outside coverage".
const (
	arsoURL = "https://vreme.arso.gov.si/uploads/probase/www/observ/radar/si0-zm.srd"

	arsoWidth  = 401
	arsoHeight = 301

	arsoLat0 = 46.12
	arsoLon0 = 14.815
	arsoDxM  = 1000.0
	arsoDyM  = 1000.0
)

var arsoProj4 = fmt.Sprintf(
	"+proj=lcc +lat_1=%[1]g +lat_2=%[1]g +lat_0=%[1]g +lon_0=%g +x_0=0 +y_0=0 +a=6378137 +b=6356752.3142451802 +units=m +no_defs",
	arsoLat0, arsoLon0)

func arsoProjection() iradar.ProjectionInfo {
	return iradar.ProjectionInfo{
		Kind:  iradar.ProjectionLCC,
		Proj4: arsoProj4,
		Grid:  iradar.LCCGridParams{Lat0: arsoLat0, Lon0: arsoLon0, DxM: arsoDxM, DyM: arsoDyM},
	}
}

type arso struct {
	adapter
}

func newARSO(opts Options) Adapter {
	return &arso{adapter: newAdapter("arso", "zm", httpClient, opts)}
}

// fetchCurrent downloads the current frame, parses its header for
// the real timestamp and records it in the session cache under that
// timestamp.
func (r *arso) fetchCurrent(ctx context.Context) (string, string, error) {
	var body []byte
	err := r.retry(ctx, "download current frame", func() error {
		b, contentType, err := fetch(ctx, r.client, arsoURL, downloadTimeout)
		if err != nil {
			return err
		}
		if !isBinaryContent(contentType) {
			return &contentTypeError{url: arsoURL, contentType: contentType}
		}
		body = b
		return nil
	})
	if err != nil {
		return "", "", err
	}
	h, _, err := parseSRD3(body)
	if err != nil {
		return "", "", err
	}
	ts14, err := iradar.NormalizeTimestamp(h.time)
	if err != nil {
		return "", "", fmt.Errorf("sources: arso frame time: %v", err)
	}
	if p, ok := r.sessionPath(r.product, ts14); ok {
		return ts14, p, nil
	}
	path, err := r.saveTemp("arso-*.srd", body)
	if err != nil {
		return "", "", err
	}
	r.rememberSession(r.product, ts14, path)
	return ts14, path, nil
}

// ListAvailableTimestamps can only ever report the current frame;
// historical frames exist solely in the processed-data cache.
func (r *arso) ListAvailableTimestamps(ctx context.Context, count int, products []string, within *iradar.TimeRange) ([]string, error) {
	if count < 1 {
		return nil, nil
	}
	ts14, _, err := r.fetchCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return filterTimestamps([]string{ts14}, count, within), nil
}

func (r *arso) Download(ctx context.Context, timestamps, products []string) []DownloadResult {
	timestamps, err := normalizeMany(timestamps)
	if err != nil {
		return []DownloadResult{{Source: r.name, Err: err}}
	}
	var out []DownloadResult
	for _, ts := range timestamps {
		res := DownloadResult{Source: r.name, Timestamp: ts, Product: r.product}
		if p, ok := r.sessionPath(r.product, ts); ok && ts != Latest {
			res.Path = p
			res.CachedInSession = true
			out = append(out, res)
			continue
		}
		currentTS, path, err := r.fetchCurrent(ctx)
		if err != nil {
			res.Err = err
			out = append(out, res)
			continue
		}
		if ts == Latest {
			res.Timestamp = currentTS
		} else if currentTS != ts {
			res.Err = fmt.Errorf("sources: arso has no archive; current frame is %s, not %s", currentTS, ts)
			out = append(out, res)
			continue
		}
		res.Path = path
		out = append(out, res)
	}
	return out
}

func (r *arso) Decode(path string) (*iradar.RadarFrame, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources: reading %s: %v", path, err)
	}
	h, payload, err := parseSRD3(b)
	if err != nil {
		return nil, err
	}
	if h.ncell != arsoWidth*arsoHeight {
		return nil, fmt.Errorf("sources: arso frame has %d cells, want %d", h.ncell, arsoWidth*arsoHeight)
	}
	ts14, err := iradar.NormalizeTimestamp(h.time)
	if err != nil {
		return nil, fmt.Errorf("sources: arso frame time: %v", err)
	}

	nan := float32(math.NaN())
	data := make([]float32, len(payload))
	for i, v := range payload {
		if int(v) == h.offset {
			data[i] = nan
			continue
		}
		data[i] = iradar.ClipDBZ(float32(h.value(v)))
	}

	frame := &iradar.RadarFrame{
		Data:       data,
		Height:     arsoHeight,
		Width:      arsoWidth,
		Bounds:     r.NativeExtent().Bounds,
		Projection: arsoProjection(),
		Meta: iradar.FrameMeta{
			Product:  r.product,
			Quantity: "DBZH",
			Source:   r.name,
			Units:    "dBZ",
			Nodata:   float64(h.offset),
			Gain:     h.slope,
			Offset:   h.start - h.slope*float64(h.offset),
		},
		Timestamp: ts14,
	}
	if err := frame.Check(); err != nil {
		return nil, err
	}
	return frame, nil
}

func (r *arso) DecodeExtentOnly(path string) (*iradar.ExtentInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources: reading %s: %v", path, err)
	}
	h, _, err := parseSRD3(b)
	if err != nil {
		return nil, err
	}
	if h.ncell != arsoWidth*arsoHeight {
		return nil, fmt.Errorf("sources: arso frame has %d cells, want %d", h.ncell, arsoWidth*arsoHeight)
	}
	return &iradar.ExtentInfo{
		Bounds:     r.NativeExtent().Bounds,
		Height:     arsoHeight,
		Width:      arsoWidth,
		Projection: arsoProjection(),
	}, nil
}

func (r *arso) NativeExtent() iradar.NativeExtent {
	// The grid footprint, LCC corners taken back to WGS84.
	b := iradar.WGS84Bounds{West: 12.10, East: 17.44, South: 44.67, North: 47.42}
	wx, sy := iradar.LonLatToMercator(b.West, b.South)
	ex, ny := iradar.LonLatToMercator(b.East, b.North)
	return iradar.NativeExtent{
		Bounds:      b,
		Mercator:    iradar.MercatorExtent{Xmin: wx, Ymin: sy, Xmax: ex, Ymax: ny},
		Height:      arsoHeight,
		Width:       arsoWidth,
		ResolutionM: arsoDxM,
		Projection:  "lcc",
	}
}
