package alma

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/time/rate"
)

// ApplyOptions bounds the batch group-change applier.
type ApplyOptions struct {
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries int

	// RateLimitRPS limits requests per second against the API. Set to <=0
	// to disable.
	RateLimitRPS float64

	// BackoffInitial is the initial sleep before retrying; BackoffMax caps
	// the exponential growth.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (o ApplyOptions) withDefaults() ApplyOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	return o
}

// ApplyResult is the outcome for one barcode.
type ApplyResult struct {
	Barcode string
	Group   string
	Err     error
}

// ApplyGroupChanges reassigns each barcode in changes to its new group,
// sequentially in sorted barcode order. Per-record failures are recorded
// and never stop the batch; only context cancellation does.
func ApplyGroupChanges(ctx context.Context, c *Client, changes map[string]string, opts ApplyOptions) ([]ApplyResult, error) {
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	barcodes := make([]string, 0, len(changes))
	for barcode := range changes {
		barcodes = append(barcodes, barcode)
	}
	slices.Sort(barcodes)

	results := make([]ApplyResult, 0, len(barcodes))
	for _, barcode := range barcodes {
		group := changes[barcode]
		err := applyOne(ctx, c, barcode, group, limiter, opts)
		if err != nil && ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, ApplyResult{Barcode: barcode, Group: group, Err: err})
	}
	return results, nil
}

func applyOne(ctx context.Context, c *Client, barcode, group string, limiter *rate.Limiter, opts ApplyOptions) error {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = c.ReassignGroup(ctx, barcode, group)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || attempt == opts.MaxRetries {
			return lastErr
		}

		t := time.NewTimer(backoffSleep(opts.BackoffInitial, opts.BackoffMax, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func backoffSleep(initial, max time.Duration, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
	}
	if sleep > max {
		sleep = max
	}
	return sleep
}
