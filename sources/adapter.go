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
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/imeteo/iradar"
	"github.com/sirupsen/logrus"
)

// adapter carries the state shared by every provider adapter: the
// session download cache, temp-file bookkeeping and the failure
// counter behind the retry wrapper.
type adapter struct {
	name    string
	country string
	product string
	client  *http.Client
	log     logrus.FieldLogger

	tempDir string

	mu       sync.Mutex
	session  map[string]string // (product, ts14) -> downloaded path
	temps    []string
	failures int
}

func newAdapter(name, product string, client *http.Client, opts Options) adapter {
	return adapter{
		name:    name,
		country: countries[name],
		product: product,
		client:  client,
		log:     opts.Log,
		tempDir: opts.TempDir,
		session: make(map[string]string),
	}
}

func (a *adapter) Name() string           { return a.name }
func (a *adapter) Country() string        { return a.country }
func (a *adapter) DefaultProduct() string { return a.product }

func (a *adapter) recordFailure() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures++
	return a.failures
}

func sessionKey(product, ts14 string) string { return product + "_" + ts14 }

// sessionPath returns the already-downloaded path for a
// (product, timestamp), if this run fetched it before.
func (a *adapter) sessionPath(product, ts14 string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.session[sessionKey(product, ts14)]
	return p, ok
}

func (a *adapter) rememberSession(product, ts14, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session[sessionKey(product, ts14)] = path
}

// saveTemp writes data to a fresh mode-0600 temporary file and
// registers it for cleanup.
func (a *adapter) saveTemp(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(a.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("sources: creating temp file: %v", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sources: writing %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("sources: writing %s: %v", name, err)
	}
	a.mu.Lock()
	a.temps = append(a.temps, name)
	a.mu.Unlock()
	return name, nil
}

// CleanupTempFiles deletes this run's downloads and clears the
// session cache.
func (a *adapter) CleanupTempFiles() int {
	a.mu.Lock()
	temps := a.temps
	a.temps = nil
	a.session = make(map[string]string)
	a.mu.Unlock()

	count := 0
	for _, path := range temps {
		if err := os.Remove(path); err == nil {
			count++
		} else if !os.IsNotExist(err) {
			a.log.WithField("source", a.name).Warnf("removing temp file %s: %v", path, err)
		}
	}
	return count
}

// download fetches one (timestamp, product) URL through the session
// cache and the retry wrapper, staging the body in a temp file.
func (a *adapter) download(ctx context.Context, ts14, product, url, pattern string) DownloadResult {
	res := DownloadResult{Source: a.name, Timestamp: ts14, Product: product}
	if p, ok := a.sessionPath(product, ts14); ok {
		res.Path = p
		res.CachedInSession = true
		return res
	}

	var body []byte
	err := a.retry(ctx, "download "+filepath.Base(url), func() error {
		b, contentType, err := fetch(ctx, a.client, url, downloadTimeout)
		if err != nil {
			return err
		}
		if !isBinaryContent(contentType) {
			return &contentTypeError{url: url, contentType: contentType}
		}
		body = b
		return nil
	})
	if err != nil {
		res.Err = err
		return res
	}

	path, err := a.saveTemp(pattern, body)
	if err != nil {
		res.Err = err
		return res
	}
	a.rememberSession(product, ts14, path)
	res.Path = path
	a.log.WithFields(logrus.Fields{
		"source": a.name, "timestamp": ts14, "product": product,
	}).Debug("downloaded frame")
	return res
}

// resolveProducts substitutes the default product for an empty
// request.
func (a *adapter) resolveProducts(products []string) []string {
	if len(products) == 0 {
		return []string{a.product}
	}
	return products
}

// normalizeMany validates and normalizes a timestamp batch; the
// Latest sentinel passes through.
func normalizeMany(timestamps []string) ([]string, error) {
	out := make([]string, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts == Latest {
			out = append(out, ts)
			continue
		}
		n, err := iradar.NormalizeTimestamp(ts)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
