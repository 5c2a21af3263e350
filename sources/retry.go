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
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	maxRetryAttempts = 3
	maxRetryInterval = 30 * time.Second

	// alertFailureThreshold is the per-source failure count above
	// which failures are logged at error severity instead of
	// warning.
	alertFailureThreshold = 5
)

// classify wraps err as permanent when retrying cannot help: the
// file does not exist, or the provider answered with HTML where a
// data file was expected. Timeouts, 5xx and connection resets stay
// retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.status >= 400 && statusErr.status < 500 {
		return backoff.Permanent(err)
	}
	var ctErr *contentTypeError
	if errors.As(err, &ctErr) {
		return backoff.Permanent(err)
	}
	return err
}

// retry runs op with exponential backoff, jitter and a hard attempt
// cap. Each failed attempt increments the adapter's failure
// counter; past the alert threshold the retry log line is promoted
// to error severity.
func (a *adapter) retry(ctx context.Context, op string, f func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxRetryInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRetryAttempts-1), ctx)
	return backoff.RetryNotify(
		func() error { return classify(f()) },
		policy,
		func(err error, wait time.Duration) {
			n := a.recordFailure()
			entry := a.log.WithField("source", a.name)
			if n > alertFailureThreshold {
				entry.Errorf("%s failed %d times, retrying in %s: %v", op, n, wait.Round(time.Millisecond), err)
			} else {
				entry.Warnf("%s failed, retrying in %s: %v", op, wait.Round(time.Millisecond), err)
			}
		})
}
