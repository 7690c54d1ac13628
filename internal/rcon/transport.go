package rcon

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	gorcon "github.com/gorcon/rcon"
)

// Transport is an authenticated RCON session. Execute sends one command and
// returns its response text; it is not safe for concurrent use.
type Transport interface {
	Execute(command string) (string, error)
	Close() error
}

// Dialer opens and authenticates a Transport.
type Dialer func(ctx context.Context, addr, password string) (Transport, error)

// GorconDialer dials Source RCON servers. deadline bounds every read and
// write on the session.
func GorconDialer(dialTimeout, deadline time.Duration) Dialer {
	return func(ctx context.Context, addr, password string) (Transport, error) {
		type dialed struct {
			conn *gorcon.Conn
			err  error
		}
		ch := make(chan dialed, 1)
		go func() {
			conn, err := gorcon.Dial(addr, password,
				gorcon.SetDialTimeout(dialTimeout),
				gorcon.SetDeadline(deadline),
			)
			ch <- dialed{conn: conn, err: err}
		}()

		select {
		case d := <-ch:
			if d.err != nil {
				return nil, d.err
			}
			return d.conn, nil
		case <-ctx.Done():
			// the dial still finishes in the background; release what it opened
			go func() {
				if d := <-ch; d.conn != nil {
					_ = d.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// classifyFault decides what a failed Execute means for the connection.
// fault is false when only the command was rejected.
func classifyFault(err error) (kind EventKind, fault bool) {
	switch {
	case errors.Is(err, gorcon.ErrCommandEmpty), errors.Is(err, gorcon.ErrCommandTooLong):
		return 0, false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return EventEnd, true
	default:
		return EventError, true
	}
}
