package servers

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"csrcon/internal/rcon"
	"csrcon/internal/status"
)

const activeStatus = `hostname: MyServer
udp/ip: 10.0.0.5:27015
map     : de_dust2
1 "x" "192.168.1.20:27016" 'Alice'
2 BOT 'Bob'
`

// scriptedTransport answers by command; unknown commands echo back.
type scriptedTransport struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	sent    []string
	closed  bool
}

func newScripted() *scriptedTransport {
	return &scriptedTransport{replies: map[string][]string{}, errs: map[string]error{}}
}

// reply queues responses for cmd; the last one repeats.
func (s *scriptedTransport) reply(cmd string, responses ...string) *scriptedTransport {
	s.replies[cmd] = append(s.replies[cmd], responses...)
	return s
}

func (s *scriptedTransport) Execute(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	if err := s.errs[cmd]; err != nil {
		return "", err
	}
	queue := s.replies[cmd]
	switch len(queue) {
	case 0:
		return cmd, nil
	case 1:
		return queue[0], nil
	default:
		s.replies[cmd] = queue[1:]
		return queue[0], nil
	}
}

func (s *scriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedTransport) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func connOptions(t rcon.Transport) []rcon.Option {
	return []rcon.Option{
		rcon.WithDialer(func(context.Context, string, string) (rcon.Transport, error) { return t, nil }),
		rcon.WithMinInterval(time.Millisecond),
	}
}

func newTestServer(t *testing.T, tr *scriptedTransport) *Server {
	t.Helper()
	cfg := Config{ID: 4, Host: "127.0.0.1", Port: 27015, Password: "pw"}
	conn := rcon.NewConn(cfg.ID, cfg.Addr(), cfg.Password, connOptions(tr)...)
	s := NewServer(cfg, conn, RetryPolicy{MaxRetries: 10, Delay: time.Millisecond}, nil)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestServerStatus(t *testing.T) {
	tr := newScripted().
		reply("status", "Server:  Inactive", "Server:  Inactive", activeStatus).
		reply("mp_teamname_1", "mp_teamname_1 = Alpha").
		reply("mp_teamname_2", "Unknown command")
	s := newTestServer(t, tr)

	snap, err := s.Status(context.Background(), "192.168.1.20")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := &status.Snapshot{
		Name:    "MyServer",
		Connect: "10.0.0.5:27015",
		Map:     "de_dust2",
		Players: []status.Player{{IP: "192.168.1.20", Name: "Alice", Active: true}},
		Team1:   "Alpha",
	}
	if !reflect.DeepEqual(snap, want) {
		t.Fatalf("Status() = %+v, want %+v", snap, want)
	}

	sent := tr.commands()
	if len(sent) != 5 || sent[0] != "status" || sent[1] != "status" || sent[2] != "status" {
		t.Fatalf("commands = %v", sent)
	}
	teams := append([]string(nil), sent[3:]...)
	sort.Strings(teams)
	if !reflect.DeepEqual(teams, []string{"mp_teamname_1", "mp_teamname_2"}) {
		t.Fatalf("team queries = %v", teams)
	}
}

func TestServerStatusIsStableAcrossCallers(t *testing.T) {
	tr := newScripted().reply("status", activeStatus)
	s := newTestServer(t, tr)

	first, err := s.Status(context.Background(), "192.168.1.20")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	second, err := s.Status(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if second.Players[0].Active {
		t.Fatal("other caller must not be active")
	}
	second.Players[0].Active = true
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots differ beyond active: %+v vs %+v", first, second)
	}
}

func TestServerStatusUnavailable(t *testing.T) {
	tr := newScripted().reply("status", "Server: Inactive")
	s := newTestServer(t, tr)

	_, err := s.Status(context.Background(), "1.2.3.4")
	var unavailable *ServerUnavailableError
	if !errors.As(err, &unavailable) || unavailable.ServerID != 4 {
		t.Fatalf("expected ServerUnavailableError for #4, got %v", err)
	}
	for _, cmd := range tr.commands() {
		if strings.HasPrefix(cmd, "mp_teamname") {
			t.Fatal("team names queried for an inactive server")
		}
	}
}

func TestServerListMaps(t *testing.T) {
	tr := newScripted().reply("maps *", "de_dust2\ncs_office\nde_secret_vanity\n")
	s := newTestServer(t, tr)

	maps, err := s.ListMaps(context.Background())
	if err != nil {
		t.Fatalf("list maps: %v", err)
	}
	if !reflect.DeepEqual(maps, []string{"de_dust2", "cs_office"}) {
		t.Fatalf("maps = %v", maps)
	}
}

func TestServerSetMap(t *testing.T) {
	tests := []struct {
		name     string
		mapName  string
		response string
		wantErr  bool
		sent     bool
	}{
		{"accepted", "de_nuke", "Changelevel to de_nuke", false, true},
		{"rejected", "bogus", "map load failed: bogus not found or invalid map name", true, true},
		{"marker is case sensitive", "de_inferno", "Invalid Map Name", false, true},
		{"empty", "  ", "", true, false},
		{"injection", "de_nuke;quit", "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newScripted().reply("map "+strings.TrimSpace(tt.mapName), tt.response)
			s := newTestServer(t, tr)

			err := s.SetMap(context.Background(), tt.mapName)
			if tt.wantErr {
				var invalid *InvalidMapError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected *InvalidMapError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("set map: %v", err)
			}
			if got := len(tr.commands()) == 1; got != tt.sent {
				t.Fatalf("command sent = %v, want %v (%v)", got, tt.sent, tr.commands())
			}
		})
	}
}

func TestServerSetTeamNames(t *testing.T) {
	tr := newScripted()
	s := newTestServer(t, tr)

	team1 := `Al"pha`
	if err := s.SetTeamNames(context.Background(), TeamNames{Team1: &team1}); err != nil {
		t.Fatalf("set team names: %v", err)
	}
	if sent := tr.commands(); !reflect.DeepEqual(sent, []string{`mp_teamname_1 "Alpha"`}) {
		t.Fatalf("commands = %v", sent)
	}

	team2 := "Bravo"
	if err := s.SetTeamNames(context.Background(), TeamNames{Team1: &team1, Team2: &team2}); err != nil {
		t.Fatalf("set team names: %v", err)
	}
	sent := tr.commands()[1:]
	sort.Strings(sent)
	if !reflect.DeepEqual(sent, []string{`mp_teamname_1 "Alpha"`, `mp_teamname_2 "Bravo"`}) {
		t.Fatalf("commands = %v", sent)
	}
}

func TestServerGameCommands(t *testing.T) {
	tr := newScripted()
	s := newTestServer(t, tr)
	ctx := context.Background()

	for _, call := range []func(context.Context) error{s.RestartGame, s.PauseGame, s.UnpauseGame} {
		if err := call(ctx); err != nil {
			t.Fatalf("game command: %v", err)
		}
	}
	want := []string{"mp_restartgame 3", "mp_pause_match", "mp_unpause_match"}
	if sent := tr.commands(); !reflect.DeepEqual(sent, want) {
		t.Fatalf("commands = %v, want %v", sent, want)
	}
}

func TestServerCommandErrorPropagates(t *testing.T) {
	tr := newScripted()
	boom := errors.New("connection reset")
	tr.errs["mp_pause_match"] = boom
	s := newTestServer(t, tr)

	if err := s.PauseGame(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
