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
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/imeteo/iradar"
	"golang.org/x/sync/semaphore"
)

// Per-call timeouts. Downloads get the longest deadline; catalog
// probes must fail fast so an unresponsive provider does not stall
// the whole run.
const (
	probeTimeout    = 10 * time.Second
	listingTimeout  = 15 * time.Second
	downloadTimeout = 30 * time.Second
)

// probeParallelism bounds concurrent HEAD probes per provider.
const probeParallelism = 4

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// httpClient is shared by all adapters; connections are pooled per
// host.
var httpClient = &http.Client{Transport: newTransport()}

// insecureClient skips certificate verification. The Slovak
// provider serves its open-data host with a certificate that does
// not validate; this is provider policy, not ours.
var insecureClient = func() *http.Client {
	t := newTransport()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &http.Client{Transport: t}
}()

// httpStatusError marks a response-status failure so the retry
// wrapper can classify it.
type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("sources: %s returned status %d", e.url, e.status)
}

// contentTypeError marks an HTML or plain-text body served where a
// data file was expected, the usual way some providers report
// errors with status 200.
type contentTypeError struct {
	url         string
	contentType string
}

func (e *contentTypeError) Error() string {
	return fmt.Sprintf("sources: %s returned %q where binary data was expected", e.url, e.contentType)
}

// fetch performs a GET with a bounded timeout and returns the body
// and content type.
func fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("sources: building request for %s: %v", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("sources: fetching %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, "", &httpStatusError{status: resp.StatusCode, url: url}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("sources: reading %s: %v", url, err)
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// exists performs a HEAD with the probe timeout.
func exists(ctx context.Context, client *http.Client, url string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("sources: building request for %s: %v", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("sources: probing %s: %v", url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, &httpStatusError{status: resp.StatusCode, url: url}
	}
}

// isBinaryContent rejects HTML served where a data file was
// expected, which is how some providers report errors with status
// 200.
func isBinaryContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return !strings.Contains(ct, "text/html") && !strings.Contains(ct, "text/plain")
}

// probeTimestamps discovers available frames by speculative HEAD
// requests at step intervals back from now, newest first. Used by
// providers without a usable catalog and as the fallback when
// listing parsing fails.
func probeTimestamps(ctx context.Context, client *http.Client, urlFor func(ts14 string) string,
	count, maxProbes int, step time.Duration, within *iradar.TimeRange) ([]string, error) {

	now := time.Now().UTC().Truncate(step)
	candidates := make([]string, 0, maxProbes)
	for i := 0; i < maxProbes; i++ {
		t := now.Add(-time.Duration(i) * step)
		if within != nil && !within.Contains(t) {
			continue
		}
		candidates = append(candidates, iradar.TimeToTimestamp(t))
	}

	found := make([]bool, len(candidates))
	sem := semaphore.NewWeighted(probeParallelism)
	for i, ts := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(i int, ts string) {
			defer sem.Release(1)
			ok, err := exists(ctx, client, urlFor(ts))
			found[i] = err == nil && ok
		}(i, ts)
	}
	if err := sem.Acquire(ctx, probeParallelism); err != nil {
		return nil, err
	}
	sem.Release(probeParallelism)

	out := make([]string, 0, count)
	for i, ok := range found {
		if ok {
			out = append(out, candidates[i])
			if len(out) == count {
				break
			}
		}
	}
	return out, nil
}

// filterTimestamps keeps timestamps inside the range, newest first,
// capped at count.
func filterTimestamps(ts14s []string, count int, within *iradar.TimeRange) []string {
	out := make([]string, 0, count)
	for _, ts := range ts14s {
		if within != nil {
			t, err := iradar.TimestampTime(ts)
			if err != nil || !within.Contains(t) {
				continue
			}
		}
		out = append(out, ts)
		if len(out) == count {
			break
		}
	}
	return out
}
