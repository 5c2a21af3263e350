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

package warp

import (
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/internal/memfile"
)

// Transform grids are serialized as netCDF classic containers:
// plain typed arrays plus a small attribute header. The format
// cannot carry executable payloads, which is a load-time security
// requirement for grids fetched from the object store.

// maxGridBytes caps the size of a container accepted for decoding.
const maxGridBytes = 256 << 20

// MarshalGrid encodes a transform grid. The signature matches the
// disk-cache marshal contract, which passes a pointer to the cached
// payload.
func MarshalGrid(data interface{}) ([]byte, error) {
	if p, ok := data.(*interface{}); ok {
		data = *p
	}
	g, ok := data.(*TransformGrid)
	if !ok {
		return nil, fmt.Errorf("warp: cannot marshal %T as a transform grid", data)
	}
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.DstH, g.DstW})
	h.AddAttribute("", "comment", "iradar reprojection index grid")
	h.AddAttribute("", "source", g.Source)
	h.AddAttribute("", "version", g.Version)
	h.AddAttribute("", "src_shape", []int32{int32(g.SrcH), int32(g.SrcW)})
	h.AddAttribute("", "mercator_bounds", []float64{g.Mercator.Xmin, g.Mercator.Ymin, g.Mercator.Xmax, g.Mercator.Ymax})
	h.AddAttribute("", "wgs84_bounds", []float64{g.DstBounds.West, g.DstBounds.East, g.DstBounds.South, g.DstBounds.North})
	h.AddAttribute("", "resolution_m", []float64{g.ResolutionM})
	h.AddVariable("row_idx", []string{"y", "x"}, []int16{0})
	h.AddVariable("col_idx", []string{"y", "x"}, []int16{0})
	h.Define()

	mf := memfile.New(nil)
	f, err := cdf.Create(mf, h)
	if err != nil {
		return nil, fmt.Errorf("warp: creating grid container: %v", err)
	}
	for name, vals := range map[string][]int16{"row_idx": g.Rows, "col_idx": g.Cols} {
		w := f.Writer(name, nil, nil)
		if _, err := w.Write(vals); err != nil {
			return nil, fmt.Errorf("warp: writing %s: %v", name, err)
		}
	}
	return mf.Bytes(), nil
}

// UnmarshalGrid decodes a transform grid container. A version or
// shape surprise is an error, which cache tiers treat as a miss.
func UnmarshalGrid(b []byte) (interface{}, error) {
	if len(b) > maxGridBytes {
		return nil, fmt.Errorf("warp: grid container of %d bytes exceeds limit", len(b))
	}
	f, err := cdf.Open(memfile.New(b))
	if err != nil {
		return nil, fmt.Errorf("warp: opening grid container: %v", err)
	}
	g := new(TransformGrid)
	var ok bool
	if g.Source, ok = f.Header.GetAttribute("", "source").(string); !ok {
		return nil, fmt.Errorf("warp: grid container has no source attribute")
	}
	if g.Version, ok = f.Header.GetAttribute("", "version").(string); !ok {
		return nil, fmt.Errorf("warp: grid container has no version attribute")
	}
	srcShape, ok := f.Header.GetAttribute("", "src_shape").([]int32)
	if !ok || len(srcShape) != 2 {
		return nil, fmt.Errorf("warp: grid container has invalid src_shape")
	}
	g.SrcH, g.SrcW = int(srcShape[0]), int(srcShape[1])
	merc, ok := f.Header.GetAttribute("", "mercator_bounds").([]float64)
	if !ok || len(merc) != 4 {
		return nil, fmt.Errorf("warp: grid container has invalid mercator_bounds")
	}
	g.Mercator = iradar.MercatorExtent{Xmin: merc[0], Ymin: merc[1], Xmax: merc[2], Ymax: merc[3]}
	wgs, ok := f.Header.GetAttribute("", "wgs84_bounds").([]float64)
	if !ok || len(wgs) != 4 {
		return nil, fmt.Errorf("warp: grid container has invalid wgs84_bounds")
	}
	g.DstBounds = iradar.WGS84Bounds{West: wgs[0], East: wgs[1], South: wgs[2], North: wgs[3]}
	res, ok := f.Header.GetAttribute("", "resolution_m").([]float64)
	if !ok || len(res) != 1 {
		return nil, fmt.Errorf("warp: grid container has invalid resolution_m")
	}
	g.ResolutionM = res[0]

	lengths := f.Header.Lengths("row_idx")
	if len(lengths) != 2 {
		return nil, fmt.Errorf("warp: row_idx has %d dimensions, want 2", len(lengths))
	}
	g.DstH, g.DstW = lengths[0], lengths[1]
	n := g.DstH * g.DstW
	for name, dst := range map[string]*[]int16{"row_idx": &g.Rows, "col_idx": &g.Cols} {
		buf := make([]int16, n)
		r := f.Reader(name, nil, nil)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("warp: reading %s: %v", name, err)
		}
		*dst = buf
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}
