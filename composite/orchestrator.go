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

package composite

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/datacache"
	"github.com/imeteo/iradar/render"
	"github.com/imeteo/iradar/sources"
	"github.com/imeteo/iradar/warp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config are the run parameters of the pipeline.
type Config struct {
	// Sources are the source names to process; empty means all
	// registered sources.
	Sources []string

	// Count is how many matched timestamps to process per run.
	Count int

	// Tolerance is the timestamp matching window.
	Tolerance time.Duration

	// MaxDataAge is the freshness threshold for outage detection.
	MaxDataAge time.Duration

	// MinCoreSources is the core quorum, for both the run gate
	// and the per-timestamp check.
	MinCoreSources int

	// NoIndividual suppresses the per-source overlay PNGs; only
	// the fused composite is published.
	NoIndividual bool

	// RequireARSO disables the ARSO-drop rung of the degradation
	// ladder: a run without a usable ARSO frame fails instead.
	RequireARSO bool

	// Force reprocesses timestamps whose composite already
	// exists.
	Force bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if len(out.Sources) == 0 {
		out.Sources = sources.Names()
	}
	if out.Count <= 0 {
		out.Count = 1
	}
	if out.Tolerance <= 0 {
		out.Tolerance = 5 * time.Minute
	}
	if out.MaxDataAge <= 0 {
		out.MaxDataAge = iradar.DefaultMaxDataAge
	}
	if out.MinCoreSources <= 0 {
		out.MinCoreSources = iradar.DefaultMinCoreSources
	}
	return out
}

// Summary is the outcome of one run.
type Summary struct {
	Processed           []string
	SkippedExists       []string
	SkippedInsufficient []string
	Failed              []string

	// Statuses is the outage classification of every configured
	// source at probe time.
	Statuses []iradar.SourceStatus
}

// Orchestrator drives the pipeline: probe, outage gate, match, and
// per-timestamp two-pass processing. It holds at most one decoded
// source frame at a time.
type Orchestrator struct {
	cfg      Config
	ref      *iradar.ReferenceGrid
	adapters map[string]sources.Adapter
	cache    *datacache.Cache
	grids    *warp.GridCache
	exporter *Exporter
	log      logrus.FieldLogger
}

// New assembles an orchestrator from its parts. adapters must cover
// every configured source.
func New(cfg Config, ref *iradar.ReferenceGrid, adapters map[string]sources.Adapter,
	cache *datacache.Cache, grids *warp.GridCache, exporter *Exporter,
	log logrus.FieldLogger) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	for _, s := range cfg.Sources {
		if _, ok := adapters[s]; !ok {
			return nil, fmt.Errorf("composite: no adapter for source %s", s)
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		cfg:      cfg,
		ref:      ref,
		adapters: adapters,
		cache:    cache,
		grids:    grids,
		exporter: exporter,
		log:      log,
	}, nil
}

// RunLatest processes the newest matched timestamps across the
// configured sources.
func (o *Orchestrator) RunLatest(ctx context.Context) (*Summary, error) {
	return o.run(ctx, o.cfg.Sources, nil)
}

// RunBackload processes matched timestamps inside a historical time
// range. ARSO is excluded: it publishes no archive.
func (o *Orchestrator) RunBackload(ctx context.Context, within *iradar.TimeRange) (*Summary, error) {
	if within == nil {
		return nil, fmt.Errorf("composite: backload needs a time range")
	}
	if err := within.Check(); err != nil {
		return nil, err
	}
	srcs := make([]string, 0, len(o.cfg.Sources))
	for _, s := range o.cfg.Sources {
		if s == iradar.ARSOSource {
			continue
		}
		srcs = append(srcs, s)
	}
	return o.run(ctx, srcs, within)
}

// probeDepth is how many timestamps to request per source: enough
// that matching can look past a few mismatched cadence slots.
func (o *Orchestrator) probeDepth() int {
	n := o.cfg.Count * 3
	if n < 12 {
		n = 12
	}
	return n
}

// probe lists available timestamps per source in parallel. A failed
// probe is an empty list, not a run failure; outage detection
// handles it.
func (o *Orchestrator) probe(ctx context.Context, srcs []string, within *iradar.TimeRange) map[string][]string {
	var eg errgroup.Group
	results := make([]struct {
		source string
		ts     []string
	}, len(srcs))
	for i, src := range srcs {
		i, src := i, src
		a := o.adapters[src]
		eg.Go(func() error {
			ts, err := a.ListAvailableTimestamps(ctx, o.probeDepth(), nil, within)
			if err != nil {
				o.log.WithFields(logrus.Fields{
					"source": src, "error": err,
				}).Warn("probe failed")
			}
			results[i].source = src
			results[i].ts = ts
			return nil
		})
	}
	eg.Wait()

	out := make(map[string][]string, len(srcs))
	for _, r := range results {
		out[r.source] = r.ts
	}
	return out
}

// newestKnown combines fresh probe results with cached entries so a
// provider outage does not hide data we already hold.
func (o *Orchestrator) newestKnown(ctx context.Context, srcs []string, probed map[string][]string) map[string]string {
	newest := make(map[string]string, len(srcs))
	for _, src := range srcs {
		if ts := probed[src]; len(ts) > 0 {
			newest[src] = ts[0]
		}
		cached, err := o.cache.ListTimestamps(ctx, src, o.adapters[src].DefaultProduct())
		if err != nil || len(cached) == 0 {
			continue
		}
		ts14 := cached[0] + "00"
		if ts14 > newest[src] {
			newest[src] = ts14
		}
	}
	return newest
}

// candidates builds the matcher input: candidate timestamp to the
// sources that have a file there. Cached entries count as available
// files.
func (o *Orchestrator) candidates(ctx context.Context, srcs []string, probed map[string][]string) map[string]map[string]string {
	available := make(map[string]map[string]string)
	add := func(src, ts14 string) {
		if available[ts14] == nil {
			available[ts14] = make(map[string]string)
		}
		available[ts14][src] = ts14
	}
	for _, src := range srcs {
		for _, ts := range probed[src] {
			add(src, ts)
		}
		cached, err := o.cache.ListTimestamps(ctx, src, o.adapters[src].DefaultProduct())
		if err != nil {
			continue
		}
		for _, ts12 := range cached {
			add(src, ts12+"00")
		}
	}
	return available
}

func truncateList(l []string, n int) []string {
	if len(l) <= n {
		return l
	}
	return l[:n]
}

func (o *Orchestrator) run(ctx context.Context, srcs []string, within *iradar.TimeRange) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	probed := o.probe(ctx, srcs, within)
	newest := o.newestKnown(ctx, srcs, probed)
	summary.Statuses = iradar.DetectOutages(newest, srcs, o.cfg.MaxDataAge, time.Now().UTC())
	for _, st := range summary.Statuses {
		if !st.Available {
			o.log.WithFields(logrus.Fields{
				"source": st.Source, "reason": st.Reason,
			}).Warn("source in outage")
		}
	}
	// Backload matches against archives, not live freshness, so
	// the quorum gate only applies to latest-mode runs.
	if within == nil {
		if err := iradar.CheckCoreQuorum(summary.Statuses, o.cfg.MinCoreSources); err != nil {
			return summary, err
		}
	}

	avail := iradar.AvailableSources(summary.Statuses)
	if within != nil {
		avail = srcs
	}
	var matches []iradar.Match
	if o.cfg.RequireARSO {
		arsoUp := false
		for _, s := range avail {
			if s == iradar.ARSOSource {
				arsoUp = true
			}
		}
		if !arsoUp {
			return summary, fmt.Errorf("composite: ARSO required but unavailable")
		}
		matches = iradar.MatchTimestamps(o.candidates(ctx, avail, probed), avail, iradar.MatcherConfig{
			Tolerance:  o.cfg.Tolerance,
			MinSources: len(avail),
			MaxCount:   o.cfg.Count,
		})
	} else {
		matches = iradar.MatchWithDegradation(o.candidates(ctx, avail, probed), avail,
			o.cfg.Tolerance, o.cfg.MinCoreSources, o.cfg.Count, o.log)
	}
	if len(matches) == 0 {
		o.log.Info("no matched timestamps")
		o.finish(ctx, summary, start)
		return summary, nil
	}

	comp := NewCompositor(o.ref)
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			o.finish(ctx, summary, start)
			return summary, err
		}
		o.processMatch(ctx, comp, m, summary)
		comp.Reset()
	}

	o.finish(ctx, summary, start)
	return summary, nil
}

func (o *Orchestrator) finish(ctx context.Context, summary *Summary, start time.Time) {
	removed := 0
	for _, a := range o.adapters {
		removed += a.CleanupTempFiles()
	}
	if n, err := o.cache.CleanupExpired(ctx); err != nil {
		o.log.Warnf("cache cleanup: %v", err)
	} else {
		removed += n
	}
	o.log.WithFields(logrus.Fields{
		"processed":            len(summary.Processed),
		"skipped_exists":       truncateList(summary.SkippedExists, 3),
		"skipped_insufficient": truncateList(summary.SkippedInsufficient, 3),
		"failed":               truncateList(summary.Failed, 3),
		"cleaned":              removed,
		"elapsed":              time.Since(start).Round(time.Millisecond),
	}).Info("run finished")
}

// usableSource is a source verified in pass one: downloaded (or
// cached) and with decodable geometry.
type usableSource struct {
	source string
	ts14   string
	path   string // empty when the frame comes from the cache
}

// processMatch runs the two passes for one matched timestamp.
func (o *Orchestrator) processMatch(ctx context.Context, comp *Compositor, m iradar.Match, summary *Summary) {
	unix, err := iradar.TimestampUnix(m.Timestamp)
	if err != nil {
		summary.Failed = append(summary.Failed, m.Timestamp)
		return
	}
	if !o.cfg.Force && o.exporter.PNGExists(ctx, CompositeFolder, unix) {
		summary.SkippedExists = append(summary.SkippedExists, m.Timestamp)
		return
	}

	ordered := make([]string, 0, len(m.Files))
	for src := range m.Files {
		ordered = append(ordered, src)
	}
	sort.Strings(ordered)

	// Pass one: fetch and verify geometry without loading data.
	usable := make([]usableSource, 0, len(ordered))
	cores := 0
	for _, src := range ordered {
		u, ok := o.verifySource(ctx, src, m.SourceTimestamps[src])
		if !ok {
			continue
		}
		usable = append(usable, u)
		if iradar.IsCoreSource(src) {
			cores++
		}
	}
	if cores < o.cfg.MinCoreSources {
		o.log.WithFields(logrus.Fields{
			"timestamp": m.Timestamp,
			"cores":     cores,
			"required":  o.cfg.MinCoreSources,
		}).Warn("skipping timestamp: not enough usable core sources")
		summary.SkippedInsufficient = append(summary.SkippedInsufficient, m.Timestamp)
		return
	}

	// Pass two: decode, reproject, publish and merge one source at
	// a time.
	merged := 0
	for _, u := range usable {
		if err := o.mergeSource(ctx, comp, u); err != nil {
			o.log.WithFields(logrus.Fields{
				"source": u.source, "timestamp": u.ts14, "error": err,
			}).Error("merging source failed")
			continue
		}
		merged++
	}
	if merged == 0 {
		summary.Failed = append(summary.Failed, m.Timestamp)
		return
	}

	if err := o.publishComposite(ctx, comp, unix); err != nil {
		o.log.WithFields(logrus.Fields{
			"timestamp": m.Timestamp, "error": err,
		}).Error("publishing composite failed")
		summary.Failed = append(summary.Failed, m.Timestamp)
		return
	}
	summary.Processed = append(summary.Processed, m.Timestamp)
}

// verifySource is pass one for a single source: a cache hit counts
// as verified, otherwise download and decode the extent only.
func (o *Orchestrator) verifySource(ctx context.Context, src, ts14 string) (usableSource, bool) {
	a := o.adapters[src]
	if f, err := o.cache.Get(ctx, src, ts14, a.DefaultProduct()); err == nil && f != nil {
		return usableSource{source: src, ts14: ts14}, true
	}
	results := a.Download(ctx, []string{ts14}, nil)
	if len(results) == 0 || results[0].Err != nil {
		var err error
		if len(results) > 0 {
			err = results[0].Err
		}
		o.log.WithFields(logrus.Fields{
			"source": src, "timestamp": ts14, "error": err,
		}).Warn("download failed")
		return usableSource{}, false
	}
	path := results[0].Path
	if _, err := a.DecodeExtentOnly(path); err != nil {
		o.log.WithFields(logrus.Fields{
			"source": src, "timestamp": ts14, "error": err,
		}).Warn("extent decode failed")
		return usableSource{}, false
	}
	return usableSource{source: src, ts14: ts14, path: path}, true
}

// mergeSource is pass two for a single source: decode, write back to
// the cache, reproject, publish the per-source overlay, merge, and
// release the frame before the next source.
func (o *Orchestrator) mergeSource(ctx context.Context, comp *Compositor, u usableSource) error {
	a := o.adapters[u.source]

	var frame *iradar.RadarFrame
	var err error
	if u.path == "" {
		frame, err = o.cache.Get(ctx, u.source, u.ts14, a.DefaultProduct())
		if err == nil && frame == nil {
			err = fmt.Errorf("cache entry vanished")
		}
	} else {
		frame, err = a.Decode(u.path)
		if err == nil {
			if perr := o.cache.Put(ctx, frame, false); perr != nil {
				o.log.WithFields(logrus.Fields{
					"source": u.source, "error": perr,
				}).Warn("cache write-back failed")
			}
		}
	}
	if err != nil {
		return err
	}
	comp.FrameRetained()
	defer comp.FrameReleased()

	geom, err := warp.NewSourceGeometry(frame.Projection, frame.Bounds, frame.Height, frame.Width)
	if err != nil {
		return err
	}
	grid, err := o.grids.Get(ctx, u.source, geom)
	if err != nil {
		return err
	}
	rp, err := warp.Apply(grid, frame)
	if err != nil {
		return err
	}
	frame = nil

	if !o.cfg.NoIndividual {
		if err := o.publishSource(ctx, u.source, u.ts14, grid, rp); err != nil {
			return err
		}
	}
	return comp.AddSource(u.source, rp)
}

// publishSource writes one source's overlay PNG and extent side-car.
// The side-car bounds come from the transform grid, never from an
// independent recomputation.
func (o *Orchestrator) publishSource(ctx context.Context, src, ts14 string, grid *warp.TransformGrid, rp *warp.Reprojected) error {
	folder, err := sources.Country(src)
	if err != nil {
		return err
	}
	unix, err := iradar.TimestampUnix(ts14)
	if err != nil {
		return err
	}
	img, err := render.Render(rp.Data, rp.Height, rp.Width)
	if err != nil {
		return err
	}
	png, err := render.EncodePNG(img)
	if err != nil {
		return err
	}
	if _, err := o.exporter.WritePNG(ctx, folder, unix, png); err != nil {
		return err
	}
	native := o.adapters[src].NativeExtent()
	return o.exporter.WriteExtentIndex(ctx, src, folder, ExtentSource{
		Name:        src,
		Country:     folder,
		Extent:      grid.DstBounds,
		Projection:  native.Projection,
		GridSize:    [2]int{grid.DstH, grid.DstW},
		ResolutionM: grid.ResolutionM,
		Mercator:    &grid.Mercator,
	})
}

func (o *Orchestrator) publishComposite(ctx context.Context, comp *Compositor, unix int64) error {
	res := comp.Composite()
	img, err := render.Render(res.Data, res.Height, res.Width)
	if err != nil {
		return err
	}
	png, err := render.EncodePNG(img)
	if err != nil {
		return err
	}
	if _, err := o.exporter.WritePNG(ctx, CompositeFolder, unix, png); err != nil {
		return err
	}
	if err := o.exporter.WriteExtentIndex(ctx, CompositeFolder, CompositeFolder, ExtentSource{
		Name:        CompositeFolder,
		Country:     CompositeFolder,
		Extent:      res.Bounds,
		Projection:  "mercator",
		GridSize:    [2]int{res.Height, res.Width},
		ResolutionM: res.ResolutionM,
		Mercator:    &res.Mercator,
	}); err != nil {
		return err
	}
	o.log.WithFields(logrus.Fields{
		"unix":     unix,
		"sources":  res.Sources,
		"coverage": fmt.Sprintf("%.1f%%", res.CoveragePercent),
	}).Info("composite published")
	return nil
}

// backloadDepth caps how many archive timestamps one backload run
// requests per source.
const backloadDepth = 288

// Fetch downloads and caches frames for one source without
// compositing. With a time range it walks the provider archive;
// otherwise it fetches the newest frames.
func (o *Orchestrator) Fetch(ctx context.Context, src string, within *iradar.TimeRange, updateExtent bool) (*Summary, error) {
	a, ok := o.adapters[src]
	if !ok {
		return nil, fmt.Errorf("composite: no adapter for source %s", src)
	}
	if within != nil {
		if err := within.Check(); err != nil {
			return nil, err
		}
		if src == iradar.ARSOSource {
			return nil, fmt.Errorf("composite: arso publishes no archive to backload")
		}
	}
	count := o.cfg.Count
	if within != nil {
		count = backloadDepth
	}

	summary := &Summary{}
	timestamps, err := a.ListAvailableTimestamps(ctx, count, nil, within)
	if err != nil {
		return summary, err
	}
	for _, res := range a.Download(ctx, timestamps, nil) {
		if res.Err != nil {
			o.log.WithFields(logrus.Fields{
				"source": src, "timestamp": res.Timestamp, "error": res.Err,
			}).Warn("download failed")
			summary.Failed = append(summary.Failed, res.Timestamp)
			continue
		}
		frame, err := a.Decode(res.Path)
		if err != nil {
			o.log.WithFields(logrus.Fields{
				"source": src, "timestamp": res.Timestamp, "error": err,
			}).Warn("decode failed")
			summary.Failed = append(summary.Failed, res.Timestamp)
			continue
		}
		if err := o.cache.Put(ctx, frame, o.cfg.Force); err != nil {
			summary.Failed = append(summary.Failed, res.Timestamp)
			continue
		}
		summary.Processed = append(summary.Processed, frame.Timestamp)
	}
	a.CleanupTempFiles()

	if updateExtent {
		folder, err := sources.Country(src)
		if err != nil {
			return summary, err
		}
		native := a.NativeExtent()
		if err := o.exporter.WriteExtentIndex(ctx, src, folder, ExtentSource{
			Name:        src,
			Country:     folder,
			Extent:      native.Bounds,
			Projection:  native.Projection,
			GridSize:    [2]int{native.Height, native.Width},
			ResolutionM: native.ResolutionM,
		}); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// ClearCache removes cached frames for the configured sources.
func (o *Orchestrator) ClearCache(ctx context.Context) (int, error) {
	removed := 0
	for _, src := range o.cfg.Sources {
		n, err := o.cache.Clear(ctx, src)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// WriteExtents publishes the static extent side-cars for the
// configured sources and the combined document at the output root.
func (o *Orchestrator) WriteExtents(ctx context.Context) error {
	combined := make([]ExtentSource, 0, len(o.cfg.Sources)+1)
	for _, src := range o.cfg.Sources {
		folder, err := sources.Country(src)
		if err != nil {
			return err
		}
		native := o.adapters[src].NativeExtent()
		es := ExtentSource{
			Name:        src,
			Country:     folder,
			Extent:      native.Bounds,
			Projection:  native.Projection,
			GridSize:    [2]int{native.Height, native.Width},
			ResolutionM: native.ResolutionM,
		}
		if err := o.exporter.WriteExtentIndex(ctx, src, folder, es); err != nil {
			return err
		}
		combined = append(combined, es)
	}
	ref := ExtentSource{
		Name:        CompositeFolder,
		Country:     CompositeFolder,
		Extent:      o.ref.Bounds,
		Projection:  "mercator",
		GridSize:    [2]int{o.ref.Height, o.ref.Width},
		ResolutionM: o.ref.ResolutionM,
		Mercator:    &o.ref.Mercator,
	}
	if err := o.exporter.WriteExtentIndex(ctx, CompositeFolder, CompositeFolder, ref); err != nil {
		return err
	}
	combined = append(combined, ref)
	return o.exporter.WriteCombinedExtent(ctx, combined)
}

// WriteCoverageMask publishes the coverage-mask PNG on the reference
// grid for the configured sources. Each source contributes its
// transform-grid footprint when a recent frame is reachable, and its
// static native rectangle otherwise.
func (o *Orchestrator) WriteCoverageMask(ctx context.Context) (string, error) {
	mb := NewMaskBuilder(o.ref)
	for _, src := range o.cfg.Sources {
		if err := o.addSourceFootprint(ctx, mb, src); err != nil {
			o.log.WithFields(logrus.Fields{
				"source": src, "error": err,
			}).Warn("using native rectangle for coverage")
			mb.AddBounds(o.adapters[src].NativeExtent().Bounds)
		}
	}
	img, err := render.MaskImage(mb.Covered(), o.ref.Height, o.ref.Width)
	if err != nil {
		return "", err
	}
	png, err := render.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return o.exporter.WriteMask(ctx, CompositeFolder, CompositeFolder, png)
}

// addSourceFootprint resolves one source's transform grid from its
// newest frame and adds it to the mask.
func (o *Orchestrator) addSourceFootprint(ctx context.Context, mb *MaskBuilder, src string) error {
	a := o.adapters[src]
	ts, err := a.ListAvailableTimestamps(ctx, 1, nil, nil)
	if err != nil || len(ts) == 0 {
		return fmt.Errorf("no recent frame: %v", err)
	}
	results := a.Download(ctx, []string{ts[0]}, nil)
	if len(results) == 0 || results[0].Err != nil {
		return fmt.Errorf("download failed")
	}
	ext, err := a.DecodeExtentOnly(results[0].Path)
	if err != nil {
		return err
	}
	geom, err := warp.NewSourceGeometry(ext.Projection, ext.Bounds, ext.Height, ext.Width)
	if err != nil {
		return err
	}
	grid, err := o.grids.Get(ctx, src, geom)
	if err != nil {
		return err
	}
	mb.AddGrid(grid)
	return nil
}
