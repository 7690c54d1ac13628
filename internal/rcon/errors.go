package rcon

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed rejects commands on a connection that has stopped.
	ErrConnectionClosed = errors.New("rcon connection closed")
	// ErrAlreadyConnected is returned by Connect outside the Disconnected state.
	ErrAlreadyConnected = errors.New("rcon connection already started")
	// ErrNotConnected rejects commands before Connect succeeded.
	ErrNotConnected = errors.New("rcon connection not established")
)

// ConnectionError reports a failed connect or authentication.
type ConnectionError struct {
	ServerID int
	Addr     string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to server #%d (%s): %v", e.ServerID, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError is a socket level fault seen after the connection was
// established. It is delivered as an Event, not returned to a caller.
type TransportError struct {
	ServerID int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("server #%d transport: %v", e.ServerID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
