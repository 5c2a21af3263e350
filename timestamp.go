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

package iradar

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout is the canonical 14-digit timestamp form.
const timestampLayout = "20060102150405"

// NormalizeTimestamp converts the timestamp forms the providers use
// into the canonical 14-digit YYYYMMDDHHMMSS form. Accepted inputs
// are 8 digits (date only), 12 digits (to the minute), the DWD
// YYYYMMDD_HHMM form, and the canonical form itself. Normalization
// is idempotent.
func NormalizeTimestamp(ts string) (string, error) {
	s := strings.TrimSpace(ts)
	if strings.Count(s, "_") == 1 && len(s) == 13 {
		s = strings.Replace(s, "_", "", 1)
	}
	switch len(s) {
	case 8:
		s += "000000"
	case 12:
		s += "00"
	case 14:
	default:
		return "", fmt.Errorf("iradar: cannot normalize timestamp %q", ts)
	}
	if _, err := time.Parse(timestampLayout, s); err != nil {
		return "", fmt.Errorf("iradar: cannot normalize timestamp %q: %v", ts, err)
	}
	return s, nil
}

// Ts12 shortens a timestamp to the 12-digit YYYYMMDDHHMM form used
// for cache keys, where the 14-digit form collapses to the same key.
func Ts12(ts string) string {
	if len(ts) >= 12 {
		return ts[:12]
	}
	return ts
}

// TimestampTime parses a normalized timestamp as UTC.
func TimestampTime(ts14 string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, ts14)
	if err != nil {
		return time.Time{}, fmt.Errorf("iradar: parsing timestamp %q: %v", ts14, err)
	}
	return t.UTC(), nil
}

// TimeToTimestamp formats t as a normalized 14-digit timestamp.
func TimeToTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// TimestampUnix returns the Unix seconds of a normalized timestamp.
// PNG outputs are keyed by this value.
func TimestampUnix(ts14 string) (int64, error) {
	t, err := TimestampTime(ts14)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// A TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start, End time.Time
}

// Contains reports whether t lies within the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Check returns an error for an empty or inverted range.
func (r TimeRange) Check() error {
	if !r.End.After(r.Start) {
		return fmt.Errorf("iradar: time range end %v is not after start %v", r.End, r.Start)
	}
	return nil
}
