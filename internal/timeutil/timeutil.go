// Package timeutil provides context-aware timing helpers shared by the
// transport and the dispatch loop.
package timeutil

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is cancelled, returning ctx.Err() in
// the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
