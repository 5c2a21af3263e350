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

// Package datacache is the TTL-bounded cache of decoded radar
// frames, keyed by (source, product, timestamp). It has a local
// disk tier and an optional object-store tier, and doubles as the
// archive for providers that publish no archive of their own.
package datacache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/cloud"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// DefaultTTL is how long a processed frame stays valid.
const DefaultTTL = 60 * time.Minute

// Cache is the processed-frame cache. Bucket may be nil for
// local-only operation. The zero TTL means DefaultTTL.
type Cache struct {
	Root   string
	TTL    time.Duration
	Bucket *blob.Bucket
	Log    logrus.FieldLogger

	// now is replaceable for expiry tests.
	now func() time.Time
}

// New creates a cache rooted at root, creating the directory if
// needed.
func New(root string, ttl time.Duration, bucket *blob.Bucket, log logrus.FieldLogger) (*Cache, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("datacache: resolving root %s: %v", root, err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("datacache: creating root %s: %v", abs, err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{Root: abs, TTL: ttl, Bucket: bucket, Log: log, now: time.Now}, nil
}

func (c *Cache) entryBase(source, product, ts12 string) string {
	return fmt.Sprintf("%s_%s_%s", source, product, ts12)
}

func (c *Cache) dataPath(source, product, ts12 string) string {
	return filepath.Join(c.Root, source, c.entryBase(source, product, ts12)+".npz")
}

func (c *Cache) sidecarPath(source, product, ts12 string) string {
	return filepath.Join(c.Root, source, c.entryBase(source, product, ts12)+".json")
}

func (c *Cache) expired(cachedAt int64) bool {
	return time.Unix(cachedAt, 0).Add(c.TTL).Before(c.now())
}

// Get returns the cached frame for (source, ts, product), or nil
// without error on a miss. The local tier is checked first, then
// the object store; expired entries are misses.
func (c *Cache) Get(ctx context.Context, source, ts, product string) (*iradar.RadarFrame, error) {
	ts14, err := iradar.NormalizeTimestamp(ts)
	if err != nil {
		return nil, err
	}
	ts12 := iradar.Ts12(ts14)

	if sb, err := os.ReadFile(c.sidecarPath(source, product, ts12)); err == nil {
		s, err := unmarshalSidecar(sb)
		if err == nil && !c.expired(s.CachedAt) {
			db, err := os.ReadFile(c.dataPath(source, product, ts12))
			if err == nil {
				if f, err := c.assemble(s, db); err == nil {
					return f, nil
				} else {
					c.Log.WithField("source", source).Warnf("invalid local cache entry %s: %v", ts12, err)
				}
			}
		}
	}

	if c.Bucket == nil {
		return nil, nil
	}
	sb, err := cloud.ReadBlob(ctx, c.Bucket, cloud.DataKey(source, product, ts12, "json"))
	if err != nil {
		return nil, nil
	}
	s, err := unmarshalSidecar(sb)
	if err != nil || c.expired(s.CachedAt) {
		return nil, nil
	}
	db, err := cloud.ReadBlob(ctx, c.Bucket, cloud.DataKey(source, product, ts12, "npz"))
	if err != nil {
		return nil, nil
	}
	f, err := c.assemble(s, db)
	if err != nil {
		c.Log.WithField("source", source).Warnf("invalid store cache entry %s: %v", ts12, err)
		return nil, nil
	}
	// Pull the entry down so the next lookup is local.
	if err := c.writeLocal(source, product, ts12, db, sb); err != nil {
		c.Log.WithField("source", source).Warnf("caching store entry locally: %v", err)
	}
	return f, nil
}

func (c *Cache) assemble(s sidecar, container []byte) (*iradar.RadarFrame, error) {
	data, h, w, err := decodeData(container)
	if err != nil {
		return nil, err
	}
	if h != s.Dimensions[0] || w != s.Dimensions[1] {
		return nil, fmt.Errorf("datacache: container %dx%d does not match sidecar %v", h, w, s.Dimensions)
	}
	return s.frame(data)
}

// Put writes a frame to the local tier and uploads it to the object
// store. With force false an existing non-expired entry makes Put a
// no-op; a store upload failure is logged, not fatal.
func (c *Cache) Put(ctx context.Context, f *iradar.RadarFrame, force bool) error {
	if err := f.Check(); err != nil {
		return err
	}
	source, product := f.Meta.Source, f.Meta.Product
	if source == "" || product == "" {
		return fmt.Errorf("datacache: frame without source or product metadata")
	}
	ts12 := iradar.Ts12(f.Timestamp)

	if !force {
		if sb, err := os.ReadFile(c.sidecarPath(source, product, ts12)); err == nil {
			if s, err := unmarshalSidecar(sb); err == nil && !c.expired(s.CachedAt) {
				return nil
			}
		}
	}

	container, err := encodeData(f)
	if err != nil {
		return err
	}
	sb, err := marshalSidecar(newSidecar(f, c.now().Unix()))
	if err != nil {
		return err
	}
	if err := c.writeLocal(source, product, ts12, container, sb); err != nil {
		return err
	}

	if c.Bucket != nil {
		if err := cloud.WriteBlob(ctx, c.Bucket, cloud.DataKey(source, product, ts12, "npz"), container); err != nil {
			c.Log.WithField("source", source).Warnf("uploading cache entry %s: %v", ts12, err)
		} else if err := cloud.WriteBlob(ctx, c.Bucket, cloud.DataKey(source, product, ts12, "json"), sb); err != nil {
			c.Log.WithField("source", source).Warnf("uploading cache sidecar %s: %v", ts12, err)
		}
	}
	return nil
}

// writeLocal stages both files with create-temp-then-rename so
// concurrent readers never observe a partial entry.
func (c *Cache) writeLocal(source, product, ts12 string, container, sidecarJSON []byte) error {
	dir := filepath.Join(c.Root, source)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("datacache: creating %s: %v", dir, err)
	}
	if err := atomicWrite(c.dataPath(source, product, ts12), container); err != nil {
		return err
	}
	return atomicWrite(c.sidecarPath(source, product, ts12), sidecarJSON)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("datacache: staging %s: %v", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("datacache: staging %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("datacache: staging %s: %v", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("datacache: replacing %s: %v", path, err)
	}
	return nil
}

// ListTimestamps returns the cached 12-digit timestamps for a
// source, newest first, excluding expired entries. An empty product
// matches all products; the result is the union of the local and
// store tiers.
func (c *Cache) ListTimestamps(ctx context.Context, source, product string) ([]string, error) {
	seen := make(map[string]bool)

	dir := filepath.Join(c.Root, source)
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("datacache: listing %s: %v", dir, err)
	}
	for _, e := range entries {
		p, ts12, ok := parseEntryName(e.Name(), source)
		if !ok || (product != "" && p != product) {
			continue
		}
		sb, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if s, err := unmarshalSidecar(sb); err == nil && !c.expired(s.CachedAt) {
			seen[ts12] = true
		}
	}

	if c.Bucket != nil {
		keys, err := cloud.ListKeys(ctx, c.Bucket, cloud.DataSourcePrefix(source))
		if err != nil {
			c.Log.WithField("source", source).Warnf("listing store entries: %v", err)
		}
		for _, key := range keys {
			p, ts12, ok := parseEntryName(filepath.Base(key), source)
			if !ok || (product != "" && p != product) || seen[ts12] {
				continue
			}
			sb, err := cloud.ReadBlob(ctx, c.Bucket, key)
			if err != nil {
				continue
			}
			if s, err := unmarshalSidecar(sb); err == nil && !c.expired(s.CachedAt) {
				seen[ts12] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for ts := range seen {
		out = append(out, ts)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// parseEntryName splits a sidecar file name of the form
// {source}_{product}_{ts12}.json into product and timestamp.
func parseEntryName(name, source string) (product, ts12 string, ok bool) {
	if !strings.HasSuffix(name, ".json") {
		return "", "", false
	}
	base := strings.TrimSuffix(name, ".json")
	rest, found := strings.CutPrefix(base, source+"_")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	product, ts12 = rest[:i], rest[i+1:]
	if len(ts12) != 12 {
		return "", "", false
	}
	if _, err := iradar.NormalizeTimestamp(ts12); err != nil {
		return "", "", false
	}
	return product, ts12, true
}

// CleanupExpired removes expired entries from both tiers and
// returns the number of entries removed.
func (c *Cache) CleanupExpired(ctx context.Context) (int, error) {
	count := 0

	sources, err := os.ReadDir(c.Root)
	if err != nil {
		return 0, fmt.Errorf("datacache: listing %s: %v", c.Root, err)
	}
	for _, src := range sources {
		if !src.IsDir() {
			continue
		}
		dir := filepath.Join(c.Root, src.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			sb, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			s, err := unmarshalSidecar(sb)
			if err != nil || !c.expired(s.CachedAt) {
				continue
			}
			os.Remove(strings.TrimSuffix(path, ".json") + ".npz")
			os.Remove(path)
			count++
		}
	}

	if c.Bucket != nil {
		keys, err := cloud.ListKeys(ctx, c.Bucket, cloud.DataPrefix+"/")
		if err != nil {
			return count, fmt.Errorf("datacache: listing store entries: %v", err)
		}
		for _, key := range keys {
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			sb, err := cloud.ReadBlob(ctx, c.Bucket, key)
			if err != nil {
				continue
			}
			s, err := unmarshalSidecar(sb)
			if err != nil || !c.expired(s.CachedAt) {
				continue
			}
			cloud.DeleteBlob(ctx, c.Bucket, strings.TrimSuffix(key, ".json")+".npz")
			if err := cloud.DeleteBlob(ctx, c.Bucket, key); err == nil {
				count++
			}
		}
	}
	return count, nil
}

// Clear removes all entries for a source, or for every source when
// source is empty, and returns the number of entries removed.
func (c *Cache) Clear(ctx context.Context, source string) (int, error) {
	count := 0

	sources, err := os.ReadDir(c.Root)
	if err != nil {
		return 0, fmt.Errorf("datacache: listing %s: %v", c.Root, err)
	}
	for _, src := range sources {
		if !src.IsDir() || (source != "" && src.Name() != source) {
			continue
		}
		dir := filepath.Join(c.Root, src.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".json") {
				count++
			}
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}

	if c.Bucket != nil {
		prefix := cloud.DataPrefix + "/"
		if source != "" {
			prefix = cloud.DataSourcePrefix(source)
		}
		keys, err := cloud.ListKeys(ctx, c.Bucket, prefix)
		if err != nil {
			return count, fmt.Errorf("datacache: listing store entries: %v", err)
		}
		for _, key := range keys {
			if err := cloud.DeleteBlob(ctx, c.Bucket, key); err != nil {
				continue
			}
			if strings.HasSuffix(key, ".json") {
				count++
			}
		}
	}
	return count, nil
}
