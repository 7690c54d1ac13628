package servers

import (
	"errors"
	"fmt"
)

// ErrUnknownServer is returned for ids outside the configured list.
var ErrUnknownServer = errors.New("unknown server")

// ServerUnavailableError means the server never reported an active match
// within the retry budget.
type ServerUnavailableError struct {
	ServerID int
	Attempts int
}

func (e *ServerUnavailableError) Error() string {
	return fmt.Sprintf("could not connect to server #%d", e.ServerID)
}

// InvalidMapError means the server refused a map change.
type InvalidMapError struct {
	Map string
}

func (e *InvalidMapError) Error() string {
	return fmt.Sprintf("invalid map name %q", e.Map)
}
