package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/retry"
)

// ErrClientRequired indicates Connect was called without a client.
var ErrClientRequired = errors.New("index client is required")

// HealthChecker is implemented by clients that can probe the server before
// any collection call.
type HealthChecker interface {
	Heartbeat(ctx context.Context) error
}

// Connect opens the named collection, retrying while the index reports
// core.ErrIndexUnavailable. Any other error is returned at once. Clients that
// implement HealthChecker are checked first on every attempt.
func Connect(ctx context.Context, client Client, name string, policy retry.Policy) (Collection, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "index", "collection", name)
	attempt := 0
	collection, err := retry.DoValue(ctx, policy, func(ctx context.Context) (Collection, error) {
		attempt++
		if hc, ok := client.(HealthChecker); ok {
			if err := hc.Heartbeat(ctx); err != nil {
				logger.Warn("index not reachable", "attempt", attempt, "err", err)
				return nil, err
			}
		}
		c, err := client.GetOrCreateCollection(ctx, name)
		if err != nil {
			logger.Warn("collection not available", "attempt", attempt, "err", err)
		}
		return c, err
	}, retry.Is(core.ErrIndexUnavailable))
	if err != nil {
		return nil, fmt.Errorf("connect to collection %s: %w", name, err)
	}

	logger.Debug("collection ready", "attempts", attempt)
	return collection, nil
}
