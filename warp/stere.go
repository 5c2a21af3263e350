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
	"math"

	"github.com/ctessum/geom/proj"
)

// The projection library this package builds on has no
// stereographic projection in its registry, but the DWD composite
// is delivered on a polar stereographic grid. Stere fills the gap
// for the polar aspect, in the same shape as the library's own
// projections: forward maps longitude/latitude radians to meters,
// inverse maps meters back to radians.
//
// Polar stereographic with optional lat_ts, ellipsoidal or
// spherical, north or south aspect. The oblique aspect is not
// implemented; no provider uses it.
func Stere(this *proj.SR) (forward, inverse proj.Transformer, err error) {
	const (
		halfPi = math.Pi / 2
		fortPi = math.Pi / 4
		epsln  = 1.0e-10
	)

	if math.IsNaN(this.K0) {
		this.K0 = 1
	}
	x0, y0 := this.X0, this.Y0
	if math.IsNaN(x0) {
		x0 = 0
	}
	if math.IsNaN(y0) {
		y0 = 0
	}
	long0 := this.Long0
	if math.IsNaN(long0) {
		long0 = 0
	}

	if math.IsNaN(this.Lat0) || math.Abs(math.Abs(this.Lat0)-halfPi) > epsln {
		err = fmt.Errorf("warp.Stere: only the polar aspect is supported (lat_0=%g)", this.Lat0*180/math.Pi)
		return
	}
	south := this.Lat0 < 0

	con := this.B / this.A
	es := 1 - con*con
	e := math.Sqrt(es)

	phits := this.LatTS
	if math.IsNaN(phits) {
		phits = halfPi
	}
	if south {
		phits = math.Abs(phits)
	}

	// tsfn is the conformal latitude function t(phi), as in the
	// library's mercator and conic projections.
	tsfn := func(phi, sinphi float64) float64 {
		con := e * sinphi
		com := e / 2
		con = math.Pow((1-con)/(1+con), com)
		return math.Tan(fortPi-phi/2) / con
	}

	// akm1 scales the polar radius so that true scale holds at
	// phits (or k0 holds at the pole).
	var akm1 float64
	if math.Abs(phits-halfPi) < epsln {
		akm1 = 2 * this.K0 / math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e))
	} else {
		sinphits := math.Sin(phits)
		akm1 = math.Cos(phits) / tsfn(phits, sinphits)
		akm1 /= math.Sqrt(1 - es*sinphits*sinphits)
	}
	sphere := es < epsln
	if sphere {
		if math.Abs(phits-halfPi) < epsln {
			akm1 = 2 * this.K0
		} else {
			akm1 = 1 + math.Sin(phits)
		}
	}

	forward = func(lon, lat float64) (x, y float64, err error) {
		if math.IsNaN(lat) || math.IsNaN(lon) {
			err = fmt.Errorf("warp.Stere forward: invalid longitude (%g) or latitude (%g)", lon, lat)
			return
		}
		if south {
			lon, lat = -lon, -lat
		}
		lam := lon - long0
		var rho float64
		if sphere {
			rho = this.A * akm1 * math.Tan(fortPi-lat/2)
		} else {
			rho = this.A * akm1 * tsfn(lat, math.Sin(lat))
		}
		x = rho * math.Sin(lam)
		y = -rho * math.Cos(lam)
		if south {
			x, y = -x, -y
		}
		x += x0
		y += y0
		return x, y, nil
	}

	// phi2z inverts the conformal latitude by fixed-point
	// iteration.
	phi2z := func(ts float64) (float64, error) {
		phi := halfPi - 2*math.Atan(ts)
		for i := 0; i < 15; i++ {
			con := e * math.Sin(phi)
			dphi := halfPi - 2*math.Atan(ts*math.Pow((1-con)/(1+con), e/2)) - phi
			phi += dphi
			if math.Abs(dphi) <= 1.0e-10 {
				return phi, nil
			}
		}
		return 0, fmt.Errorf("warp.Stere inverse: latitude iteration did not converge")
	}

	inverse = func(x, y float64) (lon, lat float64, err error) {
		x -= x0
		y -= y0
		if south {
			x, y = -x, -y
		}
		rho := math.Hypot(x, y)
		if sphere {
			lat = halfPi - 2*math.Atan(rho/(this.A*akm1))
		} else {
			lat, err = phi2z(rho / (this.A * akm1))
			if err != nil {
				return math.NaN(), math.NaN(), err
			}
		}
		if rho < epsln {
			lon = long0
		} else {
			lon = long0 + math.Atan2(x, -y)
		}
		if south {
			lon, lat = -lon, -lat
		}
		return lon, lat, nil
	}
	return forward, inverse, nil
}
