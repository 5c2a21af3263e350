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

// Package render turns reflectivity grids into the published PNG
// overlays: a fixed dBZ color ramp for data, transparency for
// nodata, and the coverage-mask raster.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"github.com/BurntSushi/toml"
)

//go:embed colormap.toml
var colormapTOML string

type rampStop struct {
	DBZ   float64  `toml:"dbz"`
	Color [4]uint8 `toml:"color"`
}

type ramp struct {
	Stops []rampStop `toml:"stop"`
}

var stops []rampStop

func init() {
	var r ramp
	if _, err := toml.Decode(colormapTOML, &r); err != nil {
		panic(fmt.Sprintf("render: embedded colormap: %v", err))
	}
	if len(r.Stops) == 0 {
		panic("render: embedded colormap has no stops")
	}
	stops = r.Stops
	sort.Slice(stops, func(i, j int) bool { return stops[i].DBZ < stops[j].DBZ })
}

// transparent is both the nodata color and the color below the
// first ramp stop.
var transparent = color.RGBA{}

// Color maps one reflectivity value onto the ramp. NaN and values
// below the first stop are transparent.
func Color(dbz float32) color.RGBA {
	v := float64(dbz)
	if math.IsNaN(v) || v < stops[0].DBZ {
		return transparent
	}
	i := sort.Search(len(stops), func(i int) bool { return stops[i].DBZ > v }) - 1
	c := stops[i].Color
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// Render rasterizes a row-major reflectivity grid.
func Render(data []float32, height, width int) (*image.RGBA, error) {
	if height <= 0 || width <= 0 || len(data) != height*width {
		return nil, fmt.Errorf("render: data length %d does not match %dx%d", len(data), height, width)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			img.SetRGBA(c, r, Color(data[r*width+c]))
		}
	}
	return img, nil
}

// EncodePNG serializes an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encoding png: %v", err)
	}
	return buf.Bytes(), nil
}

// MaskImage rasterizes a coverage mask: covered pixels fully
// transparent, uncovered pixels opaque grey.
func MaskImage(covered []bool, height, width int) (*image.RGBA, error) {
	if height <= 0 || width <= 0 || len(covered) != height*width {
		return nil, fmt.Errorf("render: mask length %d does not match %dx%d", len(covered), height, width)
	}
	grey := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			if !covered[r*width+c] {
				img.SetRGBA(c, r, grey)
			}
		}
	}
	return img, nil
}
