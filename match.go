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
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// A Match is a candidate timestamp together with, per source, the
// handle of the file whose timestamp lies within the matching
// tolerance of the candidate.
type Match struct {
	// Timestamp is the candidate timestamp (14 digits).
	Timestamp string
	// Files maps source name to the download handle chosen for
	// this candidate.
	Files map[string]string
	// SourceTimestamps maps source name to the actual timestamp
	// of the chosen file.
	SourceTimestamps map[string]string
}

// MatcherConfig controls timestamp matching.
type MatcherConfig struct {
	// Tolerance is how far a source file may be from the
	// candidate timestamp.
	Tolerance time.Duration
	// MinSources is the number of sources a candidate needs to
	// be accepted.
	MinSources int
	// MaxCount caps the number of emitted matches; zero means
	// no cap.
	MaxCount int
}

// MatchTimestamps finds, newest first, up to cfg.MaxCount candidate
// timestamps for which at least cfg.MinSources sources have a file
// within cfg.Tolerance, preferring the closer file on a tie. The
// matching windows of emitted candidates do not overlap at 1-minute
// granularity.
//
// available maps candidate timestamp to the handles of the sources
// that delivered a file at exactly that timestamp; sources may
// appear under several candidates.
func MatchTimestamps(available map[string]map[string]string, sources []string, cfg MatcherConfig) []Match {
	type sourceFile struct {
		ts     string
		t      time.Time
		handle string
	}
	bySource := make(map[string][]sourceFile)
	for ts, handles := range available {
		t, err := TimestampTime(ts)
		if err != nil {
			continue
		}
		for src, handle := range handles {
			bySource[src] = append(bySource[src], sourceFile{ts: ts, t: t, handle: handle})
		}
	}

	candidates := make([]string, 0, len(available))
	for ts := range available {
		candidates = append(candidates, ts)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))

	var matches []Match
	var covered []TimeRange
	for _, cand := range candidates {
		candT, err := TimestampTime(cand)
		if err != nil {
			continue
		}
		window := TimeRange{
			Start: candT.Add(-cfg.Tolerance).Truncate(time.Minute),
			End:   candT.Add(cfg.Tolerance).Truncate(time.Minute).Add(time.Minute),
		}
		overlaps := false
		for _, c := range covered {
			if window.Start.Before(c.End) && c.Start.Before(window.End) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}

		m := Match{
			Timestamp:        cand,
			Files:            make(map[string]string),
			SourceTimestamps: make(map[string]string),
		}
		for _, src := range sources {
			best := -1
			bestDiff := math.MaxFloat64
			for i, sf := range bySource[src] {
				diff := math.Abs(sf.t.Sub(candT).Minutes())
				if diff > cfg.Tolerance.Minutes() {
					continue
				}
				if diff < bestDiff {
					best, bestDiff = i, diff
				}
			}
			if best >= 0 {
				sf := bySource[src][best]
				m.Files[src] = sf.handle
				m.SourceTimestamps[src] = sf.ts
			}
		}
		if len(m.Files) < cfg.MinSources {
			continue
		}
		matches = append(matches, m)
		covered = append(covered, window)
		if cfg.MaxCount > 0 && len(matches) >= cfg.MaxCount {
			break
		}
	}
	return matches
}

// ARSOSource is the name of the only optional source. It publishes
// no archive, so it frequently misses the matching window.
const ARSOSource = "arso"

// MatchWithDegradation applies the degradation ladder when no full
// match exists: first require every source, then retry with ARSO
// removed, then relax the source quorum to max(coreQuorum, n-1).
// The smallest degradation that yields at least one match wins.
func MatchWithDegradation(available map[string]map[string]string, sources []string,
	tolerance time.Duration, coreQuorum, maxCount int, log logrus.FieldLogger) []Match {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg := MatcherConfig{Tolerance: tolerance, MinSources: len(sources), MaxCount: maxCount}
	if matches := MatchTimestamps(available, sources, cfg); len(matches) > 0 {
		return matches
	}

	hasARSO := false
	withoutARSO := make([]string, 0, len(sources))
	for _, s := range sources {
		if s == ARSOSource {
			hasARSO = true
			continue
		}
		withoutARSO = append(withoutARSO, s)
	}
	if hasARSO {
		cfg.MinSources = len(withoutARSO)
		if matches := MatchTimestamps(available, withoutARSO, cfg); len(matches) > 0 {
			log.WithFields(logrus.Fields{
				"matches": len(matches),
			}).Info("ARSO dropped: no full match included the ARSO frame")
			return matches
		}
	}

	relaxed := coreQuorum
	if n := len(sources) - 1; n > relaxed {
		relaxed = n
	}
	cfg.MinSources = relaxed
	matches := MatchTimestamps(available, sources, cfg)
	if len(matches) > 0 {
		log.WithFields(logrus.Fields{
			"min_sources": relaxed,
			"matches":     len(matches),
		}).Info("accepting partial composites")
	}
	return matches
}
