package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// TrackDownloadSleepMS picks the pause taken before each track of a batch
// after the first one.
func TrackDownloadSleepMS() time.Duration {
	const (
		from = 2
		to   = 6
	)
	millis := (rand.IntN(to-from)+from)*1000 + rand.N(1000) //nolint:gosec

	return time.Duration(millis) * time.Millisecond
}

// Pause blocks for d, returning early with the context error when ctx is
// done first.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
