package booking

import (
    "context"
    "log"
    "time"
)

// RunSweeper periodically releases stale uncommitted holds until ctx
// is cancelled.  It is meant to run as a background task next to the
// HTTP server; errors are logged and the loop keeps going, since a
// transient database failure should not stop future sweeps.
func RunSweeper(ctx context.Context, s *Service, interval time.Duration) error {
    if interval <= 0 {
        interval = time.Minute
    }
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return nil
        case <-t.C:
            n, err := s.SweepStaleAttempts(ctx)
            if err != nil {
                log.Printf("sweeper: sweep failed: %v", err)
                continue
            }
            if n > 0 {
                log.Printf("sweeper: released %d stale hold(s)", n)
            }
        }
    }
}
