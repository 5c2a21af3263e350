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
	"fmt"
	"math"
	"strings"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/internal/hdf"
)

// ODIM composite layout: the data array at dataset1/data1/data,
// scaling in a what group whose location differs per provider, grid
// geometry in /where, and acquisition time in /what or
// dataset1/what.
const odimDataset = "/dataset1/data1/data"

// odimLayout captures the per-provider differences in an ODIM file.
type odimLayout struct {
	// scaleGroups are tried in order for gain/offset/nodata. The
	// Polish composite stores scaling in dataset1/what; everyone
	// else in dataset1/data1/what.
	scaleGroups []string
}

var defaultODIMLayout = odimLayout{
	scaleGroups: []string{"/dataset1/data1/what", "/dataset1/what"},
}

type odimScale struct {
	gain, offset     float64
	nodata, undetect float64
	quantity         string
}

func readODIMScale(f hdf.File, lay odimLayout) (odimScale, error) {
	s := odimScale{gain: 1, nodata: math.NaN(), undetect: math.NaN()}
	for _, group := range lay.scaleGroups {
		gain, err := f.AttrFloat(group, "gain")
		if err != nil {
			continue
		}
		s.gain = gain
		if v, err := f.AttrFloat(group, "offset"); err == nil {
			s.offset = v
		}
		if v, err := f.AttrFloat(group, "nodata"); err == nil {
			s.nodata = v
		}
		if v, err := f.AttrFloat(group, "undetect"); err == nil {
			s.undetect = v
		}
		if q, err := f.AttrString(group, "quantity"); err == nil {
			s.quantity = q
		}
		return s, nil
	}
	return s, fmt.Errorf("sources: no scaling attributes in any of %v", lay.scaleGroups)
}

// readODIMGeometry reads the /where group: WGS84 corners and the
// native projection definition. Pixel sizes are derived from the
// corners later; the xscale/yscale attributes are ignored because
// the Slovak composite publishes wrong values.
func readODIMGeometry(f hdf.File) (iradar.WGS84Bounds, string, error) {
	var b iradar.WGS84Bounds
	var err error
	if b.West, err = f.AttrFloat("/where", "LL_lon"); err != nil {
		return b, "", err
	}
	if b.South, err = f.AttrFloat("/where", "LL_lat"); err != nil {
		return b, "", err
	}
	if b.East, err = f.AttrFloat("/where", "UR_lon"); err != nil {
		return b, "", err
	}
	if b.North, err = f.AttrFloat("/where", "UR_lat"); err != nil {
		return b, "", err
	}
	projdef, err := f.AttrString("/where", "projdef")
	if err != nil {
		projdef = ""
	}
	return b, strings.TrimSpace(projdef), nil
}

// readODIMTimestamp reads the acquisition time, trying the file
// what group and falling back to the dataset start time.
func readODIMTimestamp(f hdf.File) (string, error) {
	for _, g := range []struct{ group, date, time string }{
		{"/what", "date", "time"},
		{"/dataset1/what", "startdate", "starttime"},
	} {
		d, err := f.AttrString(g.group, g.date)
		if err != nil {
			continue
		}
		t, err := f.AttrString(g.group, g.time)
		if err != nil {
			continue
		}
		ts, err := iradar.NormalizeTimestamp(strings.TrimSpace(d) + strings.TrimSpace(t))
		if err != nil {
			return "", err
		}
		return ts, nil
	}
	return "", fmt.Errorf("sources: no acquisition time in ODIM file")
}

// projectionFromProjdef classifies a projdef string. A missing or
// plain latitude/longitude definition means the grid is already in
// WGS84; anything else is a native projected CRS whose corners are
// the provider's.
func projectionFromProjdef(projdef string, corners iradar.WGS84Bounds) iradar.ProjectionInfo {
	if projdef == "" || strings.Contains(projdef, "+proj=longlat") || strings.Contains(projdef, "+proj=latlong") {
		return iradar.ProjectionInfo{Kind: iradar.ProjectionWGS84}
	}
	return iradar.ProjectionInfo{
		Kind:    iradar.ProjectionProjected,
		Proj4:   projdef,
		Corners: corners,
	}
}

// decodeODIM reads a full ODIM composite into a canonical frame.
func (a *adapter) decodeODIM(path, product string, lay odimLayout) (*iradar.RadarFrame, error) {
	f, err := hdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := f.ReadUint(odimDataset)
	if err != nil {
		return nil, err
	}
	height, width, err := f.Dims(odimDataset)
	if err != nil {
		return nil, err
	}
	scale, err := readODIMScale(f, lay)
	if err != nil {
		return nil, err
	}
	bounds, projdef, err := readODIMGeometry(f)
	if err != nil {
		return nil, fmt.Errorf("sources: %s geometry: %v", a.name, err)
	}
	ts, err := readODIMTimestamp(f)
	if err != nil {
		return nil, err
	}

	nan := float32(math.NaN())
	data := make([]float32, len(raw))
	for i, r := range raw {
		v := float64(r)
		if v == scale.nodata || v == scale.undetect {
			data[i] = nan
			continue
		}
		data[i] = iradar.ClipDBZ(float32(scale.gain*v + scale.offset))
	}

	frame := &iradar.RadarFrame{
		Data:       data,
		Height:     height,
		Width:      width,
		Bounds:     bounds,
		Projection: projectionFromProjdef(projdef, bounds),
		Meta: iradar.FrameMeta{
			Product:  product,
			Quantity: scale.quantity,
			Source:   a.name,
			Units:    "dBZ",
			Nodata:   scale.nodata,
			Gain:     scale.gain,
			Offset:   scale.offset,
		},
		Timestamp: ts,
	}
	if err := frame.Check(); err != nil {
		return nil, err
	}
	return frame, nil
}

// decodeODIMExtent reads only the geometry metadata; the data array
// is never touched.
func (a *adapter) decodeODIMExtent(path string) (*iradar.ExtentInfo, error) {
	f, err := hdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	height, width, err := f.Dims(odimDataset)
	if err != nil {
		return nil, err
	}
	bounds, projdef, err := readODIMGeometry(f)
	if err != nil {
		return nil, fmt.Errorf("sources: %s geometry: %v", a.name, err)
	}
	return &iradar.ExtentInfo{
		Bounds:     bounds,
		Height:     height,
		Width:      width,
		Projection: projectionFromProjdef(projdef, bounds),
	}, nil
}
