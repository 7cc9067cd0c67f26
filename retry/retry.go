// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package retry runs operations under a bounded exponential backoff.
//
// Errors are classified by the caller: retryable errors are attempted again
// until the policy is exhausted, anything else is returned immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidDelay is returned when BaseDelay is <= 0 or MaxDelay is negative
	ErrInvalidDelay = errors.New("retry delays must be positive")
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt. It doubles each retry.
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used when connecting to the index.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.BaseDelay <= 0 || p.MaxDelay < 0 {
		return ErrInvalidDelay
	}
	return nil
}

func (p Policy) backoff() goretry.Backoff {
	b := goretry.NewExponential(p.BaseDelay)
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}
	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Always treats every error as retryable.
func Always(error) bool { return true }

// Is returns a Classifier matching any of targets with errors.Is.
func Is(targets ...error) Classifier {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// DoValue runs op until it succeeds, returns a non-retryable error, the policy
// is exhausted or ctx is done. When attempts run out the last error is
// returned wrapped with the attempt count.
func DoValue[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error), retryable Classifier) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}
	if retryable == nil {
		retryable = Always
	}

	attempt := 0
	var lastErr error
	v, err := goretry.DoValue(ctx, policy.backoff(), func(ctx context.Context) (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", policy.MaxAttempts, "err", err)
		return zero, goretry.RetryableError(err)
	})
	if err == nil {
		return v, nil
	}
	if attempt >= policy.MaxAttempts && lastErr != nil && errors.Is(err, lastErr) && retryable(lastErr) {
		return zero, fmt.Errorf("giving up after %d attempts: %w", attempt, lastErr)
	}
	return zero, err
}

// Do is DoValue for operations without a result.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error, retryable Classifier) error {
	_, err := DoValue(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, retryable)
	return err
}
