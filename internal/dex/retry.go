package dex

import (
	"context"
	"time"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// RetryPolicy bounds the eth_call retries of a state read. The delay doubles
// after each failure, up to ten seconds.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (p RetryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	err := fn(ctx)
	for attempt := 0; err != nil && attempt < p.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(2*delay, maxRetryDelay)
		err = fn(ctx)
	}
	return err
}
