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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ctessum/requestcache"
	"github.com/imeteo/iradar/cloud"
	"github.com/imeteo/iradar/internal/hash"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// GridVersion invalidates every cached transform grid when the
// computation changes. Bump it instead of deleting store objects.
const GridVersion = "v2"

// sourceNameRE guards cache keys against path traversal: source
// names are short lower-case words, nothing else reaches the
// filesystem.
var sourceNameRE = regexp.MustCompile(`^[a-z]{2,10}$`)

// GridCache resolves transform grids through a tier chain: an
// in-process memory map, local disk, the object store, and finally
// computation. Identical concurrent requests are deduplicated;
// containers are validated on load and recomputed when invalid or
// version-mismatched.
type GridCache struct {
	cache   *requestcache.Cache
	dir     string
	bucket  *blob.Bucket
	version string

	Log logrus.FieldLogger
}

type gridRequest struct {
	geometry *SourceGeometry
	source   string
	key      string
}

// memoryCacheEntries bounds the in-process tier; there are six
// sources and a handful of geometries each.
const memoryCacheEntries = 24

// NewGridCache creates a grid cache rooted at dir. bucket may be
// nil for local-only operation.
func NewGridCache(dir string, bucket *blob.Bucket, log logrus.FieldLogger) (*GridCache, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("warp: resolving cache root %s: %v", dir, err)
	}
	if err := os.MkdirAll(absDir, 0o700); err != nil {
		return nil, fmt.Errorf("warp: creating cache root %s: %v", absDir, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := &GridCache{dir: absDir, bucket: bucket, version: GridVersion, Log: log}

	requestcache.FileExtension = ".npz"
	g.cache = requestcache.NewCache(g.resolve, 1,
		requestcache.Deduplicate(),
		requestcache.Memory(memoryCacheEntries),
		requestcache.Disk(absDir, MarshalGrid, UnmarshalGrid),
	)
	return g, nil
}

// resolve is the processor behind the memory and disk tiers: look
// in the object store, compute on a full miss, and write back to
// the store best-effort. Store failures are cache misses, not run
// failures.
func (g *GridCache) resolve(ctx context.Context, payload interface{}) (interface{}, error) {
	req := payload.(*gridRequest)
	if g.bucket != nil {
		key := cloud.GridKey(req.key)
		if b, err := cloud.ReadBlob(ctx, g.bucket, key); err == nil {
			if data, err := UnmarshalGrid(b); err == nil {
				if grid := data.(*TransformGrid); grid.Version == g.version {
					return grid, nil
				}
				g.Log.WithField("key", key).Debug("stale transform grid in object store")
			} else {
				g.Log.WithField("key", key).Debugf("invalid grid container in object store: %v", err)
			}
		}
	}

	g.Log.WithFields(logrus.Fields{
		"source": req.source,
		"shape":  fmt.Sprintf("%dx%d", req.geometry.Height, req.geometry.Width),
	}).Info("computing transform grid")
	grid, err := BuildTransformGrid(req.geometry, req.source, g.version)
	if err != nil {
		return nil, err
	}

	if g.bucket != nil {
		key := cloud.GridKey(req.key)
		if b, err := MarshalGrid(grid); err != nil {
			g.Log.WithField("key", key).Warnf("marshaling grid for upload: %v", err)
		} else if err := cloud.WriteBlob(ctx, g.bucket, key, b); err != nil {
			g.Log.WithField("key", key).Warnf("uploading grid: %v", err)
		}
	}
	return grid, nil
}

// Key builds the cache key for a source geometry:
// {source}_{H}x{W}_{bounds_hash8}_{version}. The bounds hash
// distinguishes geometries when a provider changes its footprint
// without changing dimensions.
func (g *GridCache) Key(source string, geom *SourceGeometry) (string, error) {
	if !sourceNameRE.MatchString(source) {
		return "", fmt.Errorf("warp: invalid source name %q", source)
	}
	key := fmt.Sprintf("%s_%dx%d_%s_%s", source, geom.Height, geom.Width,
		hash.Hash8(geom.Affine), g.version)
	// The key must resolve inside the cache root.
	p, err := filepath.Abs(filepath.Join(g.dir, key+requestcache.FileExtension))
	if err != nil || !strings.HasPrefix(p, g.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("warp: cache key %q escapes cache root", key)
	}
	return key, nil
}

// Get returns the transform grid for a source geometry, resolving
// through the tier chain and computing on a full miss.
func (g *GridCache) Get(ctx context.Context, source string, geom *SourceGeometry) (*TransformGrid, error) {
	key, err := g.Key(source, geom)
	if err != nil {
		return nil, err
	}
	req := g.cache.NewRequest(ctx, &gridRequest{geometry: geom, source: source, key: key}, key)
	result, err := req.Result()
	if err != nil {
		return nil, fmt.Errorf("warp: resolving grid %s: %v", key, err)
	}
	grid, ok := result.(*TransformGrid)
	if !ok {
		return nil, fmt.Errorf("warp: cache returned %T for grid %s", result, key)
	}
	if grid.Version != g.version {
		// A stale disk container slipped through; recompute
		// directly rather than serving it.
		g.Log.WithField("key", key).Debug("discarding stale transform grid")
		return BuildTransformGrid(geom, source, g.version)
	}
	return grid, nil
}
