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

package cloud

import "fmt"

// Key prefixes in the published bucket.
const (
	PNGPrefix  = "iradar"
	DataPrefix = "iradar-data/data"
	GridPrefix = "iradar-data/grid"
	// ExtentPrefix and MaskPrefix hold per-source metadata
	// side-cars.
	ExtentPrefix = "iradar-data/extent"
	MaskPrefix   = "iradar-data/mask"
)

// PNGKey is the store key of a published PNG overlay. folder is the
// country name, or "composite".
func PNGKey(folder string, unix int64) string {
	return fmt.Sprintf("%s/%s/%d.png", PNGPrefix, folder, unix)
}

// DataKey is the store key of a processed-frame container; ext is
// "npz" or "json".
func DataKey(source, product, ts12, ext string) string {
	return fmt.Sprintf("%s/%s/%s_%s_%s.%s", DataPrefix, source, source, product, ts12, ext)
}

// DataSourcePrefix is the listing prefix for one source's processed
// frames.
func DataSourcePrefix(source string) string {
	return fmt.Sprintf("%s/%s/", DataPrefix, source)
}

// GridKey is the store key of a cached transform grid.
func GridKey(key string) string {
	return fmt.Sprintf("%s/%s.npz", GridPrefix, key)
}

// ExtentKey is the store key of a source's extent index.
func ExtentKey(source string) string {
	return fmt.Sprintf("%s/%s/extent_index.json", ExtentPrefix, source)
}

// MaskKey is the store key of a source's coverage mask.
func MaskKey(source string) string {
	return fmt.Sprintf("%s/%s/coverage_mask.png", MaskPrefix, source)
}
