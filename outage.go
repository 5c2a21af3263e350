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

// CoreSources are the sources whose presence is required for the
// composite quorum. ARSO is optional.
var CoreSources = []string{"dwd", "shmu", "chmi", "omsz", "imgw"}

// IsCoreSource reports whether name belongs to the core set.
func IsCoreSource(name string) bool {
	for _, s := range CoreSources {
		if s == name {
			return true
		}
	}
	return false
}

// Defaults for outage detection.
const (
	DefaultMaxDataAge     = 30 * time.Minute
	DefaultMinCoreSources = 3
)

// SourceStatus is the freshness classification of one source.
type SourceStatus struct {
	Source    string
	Available bool
	// Newest is the newest known timestamp, empty if none.
	Newest string
	// Reason explains an outage; empty when available.
	Reason string
}

// DetectOutages classifies each source as available or in outage
// based on the newest timestamp known for it (from fresh probes and
// cached entries combined).
func DetectOutages(newest map[string]string, sources []string, maxDataAge time.Duration, now time.Time) []SourceStatus {
	statuses := make([]SourceStatus, 0, len(sources))
	for _, src := range sources {
		st := SourceStatus{Source: src, Newest: newest[src]}
		if st.Newest == "" {
			st.Reason = "no data available"
			statuses = append(statuses, st)
			continue
		}
		t, err := TimestampTime(st.Newest)
		if err != nil {
			st.Reason = fmt.Sprintf("unparseable timestamp %q", st.Newest)
			statuses = append(statuses, st)
			continue
		}
		if age := now.Sub(t); age > maxDataAge {
			st.Reason = fmt.Sprintf("stale data (age=%v)", age.Round(time.Minute))
		} else {
			st.Available = true
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// QuorumError reports a failed core-sources gate, carrying the
// reason for each unavailable core source.
type QuorumError struct {
	Available, Required int
	Reasons             map[string]string
}

func (e *QuorumError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, src := range CoreSources {
		if r, ok := e.Reasons[src]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", src, r))
		}
	}
	return fmt.Sprintf("iradar: %d of %d required core sources available (%s)",
		e.Available, e.Required, strings.Join(parts, "; "))
}

// CheckCoreQuorum enforces the minimum-core-sources gate. It returns
// a *QuorumError when fewer than minCore core sources are available.
func CheckCoreQuorum(statuses []SourceStatus, minCore int) error {
	available := 0
	reasons := make(map[string]string)
	for _, st := range statuses {
		if !IsCoreSource(st.Source) {
			continue
		}
		if st.Available {
			available++
		} else {
			reasons[st.Source] = st.Reason
		}
	}
	if available < minCore {
		return &QuorumError{Available: available, Required: minCore, Reasons: reasons}
	}
	return nil
}

// AvailableSources returns the names of the available sources, in
// the order given by statuses.
func AvailableSources(statuses []SourceStatus) []string {
	var out []string
	for _, st := range statuses {
		if st.Available {
			out = append(out, st.Source)
		}
	}
	return out
}
