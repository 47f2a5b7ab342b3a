package health

import (
	"context"
	"errors"
	"fmt"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy"
)

// ErrNoPolicy is reported while no policy version has been accepted.
var ErrNoPolicy = errors.New("no policy loaded")

// PolicyCheck passes once current returns a policy.
func PolicyCheck(current func() *policy.Policy) CheckFunc {
	return func(ctx context.Context) error {
		if current() == nil {
			return ErrNoPolicy
		}
		return nil
	}
}

// StorageCheck passes while the evidence store answers a count query.
func StorageCheck(storage evidence.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := storage.Count(ctx, &evidence.Query{}); err != nil {
			return fmt.Errorf("evidence store unavailable: %w", err)
		}
		return nil
	}
}
