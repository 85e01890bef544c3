// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"time"
)

// Reconnect backoff defaults
const (
	DefaultBackoffStep = 5 * time.Second
	DefaultBackoffMax  = 60 * time.Second
)

// Backoff computes the wait after consecutive transport failures:
// min(failures * Step, Max).
type Backoff struct {
	Step time.Duration
	Max  time.Duration

	failures int
}

// NewBackoff returns a backoff with the default 5s step and 60s ceiling
func NewBackoff() *Backoff {
	return &Backoff{Step: DefaultBackoffStep, Max: DefaultBackoffMax}
}

// Failure records a failure and returns how long to wait before retrying
func (b *Backoff) Failure() time.Duration {
	b.failures++
	return b.Next()
}

// Next returns the current wait without recording anything
func (b *Backoff) Next() time.Duration {
	if b.failures == 0 {
		return 0
	}
	d := time.Duration(b.failures) * b.Step
	if d > b.Max || d < 0 {
		d = b.Max
	}
	return d
}

// Failures returns the number of consecutive failures
func (b *Backoff) Failures() int {
	return b.failures
}

// Reset clears the failure count after a successful cycle
func (b *Backoff) Reset() {
	b.failures = 0
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
