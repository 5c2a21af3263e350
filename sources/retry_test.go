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
	"testing"

	"github.com/cenkalti/backoff"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err       error
		permanent bool
	}{
		{&httpStatusError{status: 404, url: "u"}, true},
		{&httpStatusError{status: 403, url: "u"}, true},
		{&httpStatusError{status: 500, url: "u"}, false},
		{&httpStatusError{status: 503, url: "u"}, false},
		{&contentTypeError{url: "u", contentType: "text/html"}, true},
		{fmt.Errorf("connection reset"), false},
	}
	for _, c := range cases {
		out := classify(c.err)
		_, isPermanent := out.(*backoff.PermanentError)
		if isPermanent != c.permanent {
			t.Errorf("%v: want permanent=%v but have %v", c.err, c.permanent, isPermanent)
		}
	}
	if classify(nil) != nil {
		t.Error("want nil for nil error")
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	a := newAdapter("dwd", "pg", httpClient, Options{Log: testLogger()})
	attempts := 0
	err := a.retry(context.Background(), "op", func() error {
		attempts++
		return &httpStatusError{status: 404, url: "u"}
	})
	if err == nil {
		t.Fatal("want error but have nil")
	}
	if attempts != 1 {
		t.Errorf("want 1 attempt for permanent error but have %d", attempts)
	}
}

func TestRetryExhaustsTransient(t *testing.T) {
	a := newAdapter("dwd", "pg", httpClient, Options{Log: testLogger()})
	attempts := 0
	err := a.retry(context.Background(), "op", func() error {
		attempts++
		return &httpStatusError{status: 500, url: "u"}
	})
	if err == nil {
		t.Fatal("want error but have nil")
	}
	if attempts != maxRetryAttempts {
		t.Errorf("want %d attempts but have %d", maxRetryAttempts, attempts)
	}
	if a.failures == 0 {
		t.Error("want failure counter incremented")
	}
}

func TestRetrySucceedsAfterTransient(t *testing.T) {
	a := newAdapter("dwd", "pg", httpClient, Options{Log: testLogger()})
	attempts := 0
	err := a.retry(context.Background(), "op", func() error {
		attempts++
		if attempts < 2 {
			return &httpStatusError{status: 503, url: "u"}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Errorf("want 2 attempts but have %d", attempts)
	}
}
