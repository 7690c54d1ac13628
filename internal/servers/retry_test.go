package servers

import (
	"context"
	"errors"
	"testing"
	"time"

	"csrcon/internal/status"
)

func TestAwaitActiveExhausted(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxRetries: 10, Delay: time.Millisecond}
	_, err := p.AwaitActive(context.Background(), 3, func(context.Context) (*status.Snapshot, bool, error) {
		calls++
		return nil, false, nil
	})

	var unavailable *ServerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *ServerUnavailableError, got %v", err)
	}
	if unavailable.ServerID != 3 {
		t.Fatalf("server id = %d, want 3", unavailable.ServerID)
	}
	// one initial query plus ten delayed retries
	if calls != 11 {
		t.Fatalf("calls = %d, want 11", calls)
	}
	if err.Error() != "could not connect to server #3" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAwaitActiveTurnsActive(t *testing.T) {
	for _, k := range []int{1, 2, 5, 10} {
		calls := 0
		want := &status.Snapshot{Name: "srv"}
		p := RetryPolicy{MaxRetries: 10, Delay: time.Millisecond}
		got, err := p.AwaitActive(context.Background(), 1, func(context.Context) (*status.Snapshot, bool, error) {
			calls++
			if calls < k {
				return nil, false, nil
			}
			return want, true, nil
		})
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if got != want || calls != k {
			t.Fatalf("k=%d: got %v after %d calls", k, got, calls)
		}
	}
}

func TestAwaitActiveQueryError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := DefaultRetryPolicy.AwaitActive(context.Background(), 1, func(context.Context) (*status.Snapshot, bool, error) {
		calls++
		return nil, false, boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

func TestAwaitActiveContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := RetryPolicy{MaxRetries: 10, Delay: time.Hour}
	_, err := p.AwaitActive(ctx, 1, func(context.Context) (*status.Snapshot, bool, error) {
		return nil, false, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
