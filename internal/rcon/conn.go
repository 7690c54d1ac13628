package rcon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle position of a Conn.
type State string

const (
	StateDisconnected State = "disconnected" // created, Connect not called yet
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateErroring     State = "erroring" // auth failed or transport fault; terminal
	StateEnded        State = "ended"    // closed by peer; terminal
	StateClosed       State = "closed"   // closed locally; terminal
)

// Terminal reports whether the state can never carry commands again.
func (s State) Terminal() bool {
	return s == StateErroring || s == StateEnded || s == StateClosed
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the transport dialer.
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dial = d }
}

// WithMinInterval sets the minimum spacing between dispatches.
func WithMinInterval(d time.Duration) Option {
	return func(c *Conn) { c.minInterval = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) { c.log = l }
}

// Conn owns one RCON session: its connect lifecycle, the scheduler that is
// the only writer to the transport, and the event subscribers.
type Conn struct {
	id       int
	addr     string
	password string

	dial        Dialer
	minInterval time.Duration
	log         *zap.Logger

	events *broadcaster

	mu        sync.Mutex
	state     State
	transport Transport
	sched     *Scheduler
}

// NewConn returns a Conn in the Disconnected state.
func NewConn(id int, addr, password string, opts ...Option) *Conn {
	c := &Conn{
		id:          id,
		addr:        addr,
		password:    password,
		dial:        GorconDialer(5*time.Second, 5*time.Second),
		minInterval: DefaultMinInterval,
		log:         zap.NewNop(),
		events:      newBroadcaster(),
		state:       StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.Int("server", id))
	return c
}

// ID returns the server id this connection belongs to.
func (c *Conn) ID() int { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect authenticates against the server. It fails with a
// *ConnectionError when dialing or authentication fails.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Info("connecting", zap.String("addr", c.addr))
	t, err := c.dial(ctx, c.addr, c.password)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		// closed while dialing
		if t != nil {
			_ = t.Close()
		}
		return &ConnectionError{ServerID: c.id, Addr: c.addr, Err: ErrConnectionClosed}
	}
	if err != nil {
		c.state = StateErroring
		c.events.close()
		c.log.Warn("connect failed", zap.Error(err))
		return &ConnectionError{ServerID: c.id, Addr: c.addr, Err: err}
	}
	c.transport = t
	c.sched = NewScheduler(c.id, t, c.minInterval, c.fault, c.log)
	c.state = StateConnected
	c.log.Info("connected")
	return nil
}

// Execute schedules command on this connection.
func (c *Conn) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	sched, state := c.sched, c.state
	c.mu.Unlock()

	if sched == nil {
		if state.Terminal() {
			return "", ErrConnectionClosed
		}
		return "", ErrNotConnected
	}
	return sched.Execute(ctx, command)
}

// Subscribe registers for error and end events. The channel is closed after
// the terminal event or when the returned function is called.
func (c *Conn) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// Close disconnects. The in-flight command completes, queued commands are
// rejected with ErrConnectionClosed, the transport is closed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	c.state = StateClosed
	sched, t := c.sched, c.transport
	c.mu.Unlock()

	c.log.Info("closing", zap.String("from", string(prev)))
	if sched != nil {
		sched.Stop()
	}
	c.events.close()
	if t != nil {
		return t.Close()
	}
	return nil
}

// fault runs on the scheduler goroutine after a transport error.
func (c *Conn) fault(err error) {
	kind, _ := classifyFault(err)

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if kind == EventEnd {
		c.state = StateEnded
	} else {
		c.state = StateErroring
	}
	sched, t := c.sched, c.transport
	c.mu.Unlock()

	ev := Event{Kind: kind, ServerID: c.id}
	if kind == EventError {
		ev.Err = &TransportError{ServerID: c.id, Err: err}
		c.log.Error("transport error", zap.Error(err))
	} else {
		c.log.Info("connection ended by peer", zap.Error(err))
	}

	sched.halt()
	_ = t.Close()
	c.events.publish(ev)
	c.events.close()
}
