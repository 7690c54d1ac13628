package rcon

import (
	"context"
	"sync"
	"time"
)

// fakeTransport answers commands through respond and records dispatches.
type fakeTransport struct {
	mu       sync.Mutex
	respond  func(command string) (string, error)
	sent     []string
	times    []time.Time
	inFlight int
	maxSeen  int
	closed   bool
}

func (f *fakeTransport) Execute(command string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.sent = append(f.sent, command)
	f.times = append(f.times, time.Now())
	respond := f.respond
	f.mu.Unlock()

	var (
		out string
		err error
	)
	if respond != nil {
		out, err = respond(command)
	} else {
		out = "ok " + command
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return out, err
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) snapshot() ([]string, []time.Time, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...), append([]time.Time(nil), f.times...), f.maxSeen
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func dialerFor(t Transport, err error) Dialer {
	return func(ctx context.Context, addr, password string) (Transport, error) {
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
