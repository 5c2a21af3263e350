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
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// SRD-3: an ASCII header terminated by a blank line or a line
// reading DATA, followed by byte-packed pixel values quantized as
// value = start + slope*(byte - offset). The format has no
// provision for executable content.

// srd3Defaults are applied when the header omits the quantization
// keys.
const (
	srd3DefaultStart  = 12.0
	srd3DefaultSlope  = 3.0
	srd3DefaultOffset = 64
)

type srd3Header struct {
	ncell  int
	start  float64
	slope  float64
	offset int
	time   string
}

// parseSRD3 splits an SRD-3 file into its parsed header and pixel
// payload.
func parseSRD3(b []byte) (srd3Header, []byte, error) {
	h := srd3Header{start: srd3DefaultStart, slope: srd3DefaultSlope, offset: srd3DefaultOffset}

	rest := b
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			return h, nil, fmt.Errorf("sources: srd3 header not terminated")
		}
		line := strings.TrimSpace(string(rest[:i]))
		rest = rest[i+1:]
		if line == "" || line == "DATA" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			key, value = fields[0], fields[1]
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		var err error
		switch key {
		case "ncell":
			h.ncell, err = strconv.Atoi(value)
		case "start":
			h.start, err = strconv.ParseFloat(value, 64)
		case "slope":
			h.slope, err = strconv.ParseFloat(value, 64)
		case "offset":
			h.offset, err = strconv.Atoi(value)
		case "time":
			h.time = value
		}
		if err != nil {
			return h, nil, fmt.Errorf("sources: srd3 header key %q: %v", key, err)
		}
	}

	if h.ncell <= 0 {
		return h, nil, fmt.Errorf("sources: srd3 header has no ncell")
	}
	if len(rest) < h.ncell {
		return h, nil, fmt.Errorf("sources: srd3 payload of %d bytes, header says %d cells", len(rest), h.ncell)
	}
	return h, rest[:h.ncell], nil
}

// srd3Value dequantizes one payload byte.
func (h srd3Header) value(b byte) float64 {
	return h.start + h.slope*float64(int(b)-h.offset)
}
