package servers

import (
	"context"
	"time"

	"csrcon/internal/status"
)

// StatusQuery runs one status command. active is false when the server
// reported itself inactive.
type StatusQuery func(ctx context.Context) (snap *status.Snapshot, active bool, err error)

// RetryPolicy repeats a status query until the server is active.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy retries ten times, one second apart.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: DefaultStatusRetries,
	Delay:      DefaultStatusRetryDelay,
}

// AwaitActive calls query until it reports an active server. After
// MaxRetries delayed retries it gives up with *ServerUnavailableError.
// Query errors are returned as is.
func (p RetryPolicy) AwaitActive(ctx context.Context, serverID int, query StatusQuery) (*status.Snapshot, error) {
	for attempt := 1; ; attempt++ {
		snap, active, err := query(ctx)
		if err != nil {
			return nil, err
		}
		if active {
			return snap, nil
		}
		if attempt > p.MaxRetries {
			return nil, &ServerUnavailableError{ServerID: serverID, Attempts: attempt}
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
