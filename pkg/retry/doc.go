// Package retry runs an operation again after transient failures.
//
// Network errors, 5xx responses and 429s are retried with exponential
// backoff and jitter; everything else fails fast. A rate limit error that
// carries a Retry-After value stretches the next delay to honor it.
//
//	err := retry.Do(ctx, func() error {
//		return client.GetJSON(ctx, url, nil, &page)
//	}, retry.FromSettings(cfg.Retry, log))
package retry
