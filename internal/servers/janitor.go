package servers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartJanitor periodically drops servers whose connection errored or was
// closed by the peer, so the next Get dials a fresh one.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range r.evictTerminal() {
					r.log.Info("evicted dead connection", zap.Int("server", id))
				}
			}
		}
	}()
}
