package servers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"csrcon/internal/rcon"
	"csrcon/internal/status"
)

// RCON commands sent by Server.
const (
	cmdStatus    = "status"
	cmdTeamName1 = "mp_teamname_1"
	cmdTeamName2 = "mp_teamname_2"
	cmdListMaps  = "maps *"
	cmdRestart   = "mp_restartgame 3"
	cmdPause     = "mp_pause_match"
	cmdUnpause   = "mp_unpause_match"
)

const invalidMapMarker = "invalid map name"

// Server is the command API of one game server. All commands go through the
// connection's scheduler.
type Server struct {
	cfg   Config
	conn  *rcon.Conn
	retry RetryPolicy
	log   *zap.Logger
}

// NewServer wraps an RCON connection. The connection is not dialed here.
func NewServer(cfg Config, conn *rcon.Conn, retry RetryPolicy, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:   cfg,
		conn:  conn,
		retry: retry,
		log:   log.With(zap.Int("server", cfg.ID)),
	}
}

// ID returns the configured server id.
func (s *Server) ID() int { return s.cfg.ID }

// Connect authenticates the underlying connection.
func (s *Server) Connect(ctx context.Context) error { return s.conn.Connect(ctx) }

// State returns the connection lifecycle state.
func (s *Server) State() rcon.State { return s.conn.State() }

// Subscribe registers for connection error and end events.
func (s *Server) Subscribe() (<-chan rcon.Event, func()) { return s.conn.Subscribe() }

// Close disconnects from the server.
func (s *Server) Close() error { return s.conn.Close() }

// Status returns the current snapshot as seen by callerIP. It waits for the
// server to report an active match.
func (s *Server) Status(ctx context.Context, callerIP string) (*status.Snapshot, error) {
	snap, err := s.retry.AwaitActive(ctx, s.cfg.ID, func(ctx context.Context) (*status.Snapshot, bool, error) {
		raw, err := s.conn.Execute(ctx, cmdStatus)
		if err != nil {
			return nil, false, fmt.Errorf("status: %w", err)
		}
		snap, active := status.Parse(raw, callerIP)
		if !active {
			s.log.Debug("server inactive, retrying")
		}
		return snap, active, nil
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := s.conn.Execute(gctx, cmdTeamName1)
		if err != nil {
			return fmt.Errorf("%s: %w", cmdTeamName1, err)
		}
		snap.Team1 = status.TeamName(raw)
		return nil
	})
	g.Go(func() error {
		raw, err := s.conn.Execute(gctx, cmdTeamName2)
		if err != nil {
			return fmt.Errorf("%s: %w", cmdTeamName2, err)
		}
		snap.Team2 = status.TeamName(raw)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListMaps returns the maps a player may switch to.
func (s *Server) ListMaps(ctx context.Context) ([]string, error) {
	raw, err := s.conn.Execute(ctx, cmdListMaps)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return status.Maps(raw), nil
}

// SetMap changes the map. A map the server does not know fails with
// *InvalidMapError.
func (s *Server) SetMap(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "\";\n") {
		return &InvalidMapError{Map: name}
	}
	raw, err := s.conn.Execute(ctx, "map "+name)
	if err != nil {
		return fmt.Errorf("set map: %w", err)
	}
	if strings.Contains(raw, invalidMapMarker) {
		return &InvalidMapError{Map: name}
	}
	s.log.Info("map changed", zap.String("map", name))
	return nil
}

// SetTeamNames renames the teams that are set in names.
func (s *Server) SetTeamNames(ctx context.Context, names TeamNames) error {
	g, gctx := errgroup.WithContext(ctx)
	set := func(cmd string, name *string) {
		if name == nil {
			return
		}
		command := fmt.Sprintf(`%s "%s"`, cmd, sanitizeTeamName(*name))
		g.Go(func() error {
			if _, err := s.conn.Execute(gctx, command); err != nil {
				return fmt.Errorf("%s: %w", cmd, err)
			}
			return nil
		})
	}
	set(cmdTeamName1, names.Team1)
	set(cmdTeamName2, names.Team2)
	return g.Wait()
}

// RestartGame restarts the match after a short countdown.
func (s *Server) RestartGame(ctx context.Context) error {
	return s.exec(ctx, cmdRestart)
}

// PauseGame pauses the match.
func (s *Server) PauseGame(ctx context.Context) error {
	return s.exec(ctx, cmdPause)
}

// UnpauseGame resumes a paused match.
func (s *Server) UnpauseGame(ctx context.Context) error {
	return s.exec(ctx, cmdUnpause)
}

func (s *Server) exec(ctx context.Context, command string) error {
	if _, err := s.conn.Execute(ctx, command); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// sanitizeTeamName drops double quotes, which would end the quoted value.
func sanitizeTeamName(name string) string {
	return strings.ReplaceAll(name, `"`, "")
}
