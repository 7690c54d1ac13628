// Package status turns the text a Counter-Strike server prints for RCON
// commands into structured values.
//
// Every rule works line by line and degrades on its own: a field the server
// did not print comes back empty, nothing here returns an error.
package status

import (
	"regexp"
	"strings"
)

// Player is one human player from a status listing. Active marks the
// player whose address matches the caller.
type Player struct {
	IP     string `json:"ip,omitempty"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Snapshot is the structured status of a server.
type Snapshot struct {
	Name    string   `json:"name,omitempty"`
	Connect string   `json:"connect,omitempty"`
	Map     string   `json:"map,omitempty"`
	Players []Player `json:"players"`
	Team1   string   `json:"team1,omitempty"`
	Team2   string   `json:"team2,omitempty"`
}

// BotMarker tags bot lines in a status listing.
const BotMarker = "BOT"

var patterns = struct {
	Inactive *regexp.Regexp
	Hostname *regexp.Regexp
	Connect  *regexp.Regexp
	Map      *regexp.Regexp
	Player   *regexp.Regexp
	NetInf   *regexp.Regexp
	TeamName *regexp.Regexp
	MapEntry *regexp.Regexp
}{
	Inactive: regexp.MustCompile(`(?i)Server\s*:\s+Inactive`),
	Hostname: regexp.MustCompile(`(?i)^hostname\s*:\s*(.+)$`),
	Connect:  regexp.MustCompile(`(?i)^udp/ip\s*:\s*([\d.:]+)`),
	Map:      regexp.MustCompile(`(?i)(?:de_|cs_)\S+`),
	Player:   regexp.MustCompile(`^\s*\d+[^']+'([^']+)'`),
	NetInf:   regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+):\d+`),
	TeamName: regexp.MustCompile(`(?i)^mp_teamname_\d+ = (.+)$`),
	MapEntry: regexp.MustCompile(`(?i)^\s*((?:de_|cs_)\w+)`),
}

// Parse builds a snapshot from a status response. ok is false when the
// server reports itself inactive. Team names are not part of the status
// output and are left empty.
func Parse(raw, callerIP string) (snap *Snapshot, ok bool) {
	if IsInactive(raw) {
		return nil, false
	}
	return &Snapshot{
		Name:    Hostname(raw),
		Connect: ConnectAddr(raw),
		Map:     MapName(raw),
		Players: Players(raw, callerIP),
	}, true
}

// IsInactive reports whether the server has no running match.
func IsInactive(raw string) bool {
	return patterns.Inactive.MatchString(raw)
}

// Hostname returns the server display name.
func Hostname(raw string) string {
	return firstSubmatch(patterns.Hostname, raw)
}

// ConnectAddr returns the public ip[:port] of the server.
func ConnectAddr(raw string) string {
	return firstSubmatch(patterns.Connect, raw)
}

// MapName returns the first de_/cs_ token.
func MapName(raw string) string {
	for _, line := range lines(raw) {
		if m := patterns.Map.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

// Players lists human players in output order. Bot lines are dropped.
func Players(raw, callerIP string) []Player {
	players := []Player{}
	for _, line := range lines(raw) {
		m := patterns.Player.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.Contains(m[0], BotMarker) {
			continue
		}
		p := Player{Name: m[1]}
		if ip := patterns.NetInf.FindStringSubmatch(m[0]); ip != nil {
			p.IP = ip[1]
		}
		p.Active = p.IP != "" && p.IP == callerIP
		players = append(players, p)
	}
	return players
}

// TeamName reads the value from an `mp_teamname_<n> = <value>` response.
func TeamName(raw string) string {
	return firstSubmatch(patterns.TeamName, raw)
}

// Maps lists the selectable maps of a `maps *` response. Vanity maps are
// left out.
func Maps(raw string) []string {
	maps := []string{}
	for _, line := range lines(raw) {
		m := patterns.MapEntry.FindStringSubmatch(line)
		if m == nil || strings.HasSuffix(m[1], "_vanity") {
			continue
		}
		maps = append(maps, m[1])
	}
	return maps
}

func firstSubmatch(re *regexp.Regexp, raw string) string {
	for _, line := range lines(raw) {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func lines(raw string) []string {
	out := strings.Split(raw, "\n")
	for i, l := range out {
		out[i] = strings.TrimRight(l, "\r")
	}
	return out
}
