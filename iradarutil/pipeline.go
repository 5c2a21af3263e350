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

package iradarutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/cloud"
	"github.com/imeteo/iradar/composite"
	"github.com/imeteo/iradar/datacache"
	"github.com/imeteo/iradar/sources"
	"github.com/imeteo/iradar/warp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"gocloud.dev/blob"
)

// timeRangeLayout is the --from/--to timestamp format, UTC.
const timeRangeLayout = "2006-01-02 15:04"

// parseTimeRange turns the backload flags into a time range. It
// returns nil when backload mode is off.
func parseTimeRange() (*iradar.TimeRange, error) {
	if !Cfg.GetBool("backload") {
		return nil, nil
	}
	hours := Cfg.GetInt("hours")
	from, to := Cfg.GetString("from"), Cfg.GetString("to")
	if hours > 0 && (from != "" || to != "") {
		return nil, fmt.Errorf("iradar: --hours and --from/--to are mutually exclusive")
	}
	if hours > 0 {
		end := time.Now().UTC()
		return &iradar.TimeRange{Start: end.Add(-time.Duration(hours) * time.Hour), End: end}, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("iradar: backload needs --hours or both --from and --to")
	}
	start, err := time.ParseInLocation(timeRangeLayout, from, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("iradar: parsing --from %q: %v", from, err)
	}
	end, err := time.ParseInLocation(timeRangeLayout, to, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("iradar: parsing --to %q: %v", to, err)
	}
	r := &iradar.TimeRange{Start: start, End: end}
	if err := r.Check(); err != nil {
		return nil, err
	}
	return r, nil
}

// resolveSources validates a source list against the registry.
func resolveSources(names []string) ([]string, error) {
	for _, name := range names {
		if _, err := sources.Country(name); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// pipeline bundles the assembled run components and their cleanup.
type pipeline struct {
	orchestrator *composite.Orchestrator
	bucket       *blob.Bucket
	cleanup      func()
}

// buildPipeline assembles adapters, caches, exporter, and the
// orchestrator from the configuration. Configuration is validated
// before anything touches the network.
func buildPipeline(ctx context.Context, srcs []string) (*pipeline, error) {
	srcs, err := resolveSources(srcs)
	if err != nil {
		return nil, err
	}
	resolution, err := cast.ToFloat64E(Cfg.Get("resolution"))
	if err != nil {
		return nil, fmt.Errorf("iradar: invalid resolution: %v", err)
	}
	ref, err := iradar.NewReferenceGrid(resolution)
	if err != nil {
		return nil, err
	}

	log := logrus.StandardLogger()
	var bucket *blob.Bucket
	if Cfg.GetBool("disable-upload") {
		log.Info("uploads disabled")
	} else {
		bucket, err = cloud.OpenBucket(ctx, cloud.ConfigFromEnv())
		if err != nil {
			return nil, err
		}
		if bucket == nil {
			log.Warn("object store credentials not configured; running local-only")
		}
	}

	cacheDir := Cfg.GetString("cache-dir")
	cleanup := func() {}
	if Cfg.GetBool("no-cache") {
		tmp, err := os.MkdirTemp("", "iradar-cache")
		if err != nil {
			return nil, fmt.Errorf("iradar: creating throwaway cache: %v", err)
		}
		cacheDir = tmp
		cleanup = func() { os.RemoveAll(tmp) }
	}
	cacheBucket := bucket
	if Cfg.GetBool("no-cache-upload") {
		cacheBucket = nil
	}
	ttl := time.Duration(Cfg.GetInt("cache-ttl")) * time.Minute
	cache, err := datacache.New(filepath.Join(cacheDir, "data"), ttl, cacheBucket, log)
	if err != nil {
		return nil, err
	}
	grids, err := warp.NewGridCache(filepath.Join(cacheDir, "grid"), cacheBucket, log)
	if err != nil {
		return nil, err
	}

	adapters := make(map[string]sources.Adapter, len(srcs))
	for _, name := range srcs {
		a, err := sources.New(name, sources.Options{Log: log})
		if err != nil {
			return nil, err
		}
		adapters[name] = a
	}

	exporter := &composite.Exporter{
		Root:          Cfg.GetString("output"),
		Bucket:        bucket,
		DisableUpload: Cfg.GetBool("disable-upload"),
		Log:           log,
	}

	o, err := composite.New(composite.Config{
		Sources:        srcs,
		Count:          Cfg.GetInt("reprocess-count"),
		Tolerance:      time.Duration(Cfg.GetInt("timestamp-tolerance")) * time.Minute,
		MaxDataAge:     time.Duration(Cfg.GetInt("max-data-age")) * time.Minute,
		MinCoreSources: Cfg.GetInt("min-core-sources"),
		NoIndividual:   Cfg.GetBool("no-individual"),
		RequireARSO:    Cfg.GetBool("require-arso"),
		Force:          Cfg.GetBool("force"),
	}, ref, adapters, cache, grids, exporter, log)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &pipeline{orchestrator: o, bucket: bucket, cleanup: cleanup}, nil
}

func (p *pipeline) close() {
	if p.bucket != nil {
		p.bucket.Close()
	}
	p.cleanup()
}

func runFetch() error {
	src := Cfg.GetString("source")
	if src == "" {
		return fmt.Errorf("iradar: fetch needs --source")
	}
	within, err := parseTimeRange()
	if err != nil {
		return err
	}
	ctx := context.Background()
	p, err := buildPipeline(ctx, []string{src})
	if err != nil {
		return err
	}
	defer p.close()

	summary, err := p.orchestrator.Fetch(ctx, src, within, Cfg.GetBool("update-extent"))
	if err != nil {
		return err
	}
	if len(summary.Processed) == 0 {
		return fmt.Errorf("iradar: no frames fetched from %s", src)
	}
	return nil
}

func runComposite() error {
	within, err := parseTimeRange()
	if err != nil {
		return err
	}
	ctx := context.Background()
	p, err := buildPipeline(ctx, Cfg.GetStringSlice("sources"))
	if err != nil {
		return err
	}
	defer p.close()

	if Cfg.GetBool("clear-cache") {
		n, err := p.orchestrator.ClearCache(ctx)
		if err != nil {
			return err
		}
		logrus.WithField("removed", n).Info("cache cleared")
	}

	var summary *composite.Summary
	if within != nil {
		summary, err = p.orchestrator.RunBackload(ctx, within)
	} else {
		summary, err = p.orchestrator.RunLatest(ctx)
	}
	if err != nil {
		return err
	}
	if len(summary.Processed) == 0 && len(summary.SkippedExists) == 0 {
		return fmt.Errorf("iradar: no composites produced")
	}
	return nil
}

// extentSelection resolves the --source flag for extent and
// coverage-mask: empty, "all" and "composite" mean every source.
func extentSelection() ([]string, error) {
	src := Cfg.GetString("source")
	if src == "" || src == "all" || src == "composite" {
		return sources.Names(), nil
	}
	return resolveSources([]string{src})
}

func runExtent() error {
	srcs, err := extentSelection()
	if err != nil {
		return err
	}
	ctx := context.Background()
	p, err := buildPipeline(ctx, srcs)
	if err != nil {
		return err
	}
	defer p.close()
	return p.orchestrator.WriteExtents(ctx)
}

func runCoverageMask() error {
	srcs, err := extentSelection()
	if err != nil {
		return err
	}
	ctx := context.Background()
	p, err := buildPipeline(ctx, srcs)
	if err != nil {
		return err
	}
	defer p.close()
	path, err := p.orchestrator.WriteCoverageMask(ctx)
	if err != nil {
		return err
	}
	logrus.WithField("path", path).Info("coverage mask written")
	return nil
}
