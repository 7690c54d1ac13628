package servers

import (
	"net"
	"strconv"
	"time"
)

// Config identifies one RCON endpoint. Ids are positions in the configured
// list and never change while the process runs.
type Config struct {
	ID       int    `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
}

// Addr is the host:port to dial.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TeamNames holds the optional names for SetTeamNames. A nil field leaves
// that team untouched.
type TeamNames struct {
	Team1 *string `json:"team1,omitempty"`
	Team2 *string `json:"team2,omitempty"`
}

// default timings for the status retry loop
const (
	DefaultStatusRetries    = 10
	DefaultStatusRetryDelay = 1 * time.Second
)

// DefaultConnectTimeout bounds a shared connect attempt in the registry.
const DefaultConnectTimeout = 10 * time.Second
