// Package httpapi exposes the server registry over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"csrcon/internal/servers"
	"csrcon/internal/status"
)

// API serves the HTTP routes over a registry.
type API struct {
	Registry *servers.Registry
	Log      *zap.Logger
}

type ctxKey int

const (
	serverKey ctxKey = iota
)

// Routes returns the HTTP handler with CORS applied.
func (a *API) Routes() http.Handler {
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	r := mux.NewRouter()
	r.HandleFunc("/test", a.serveTest).Methods(http.MethodGet)
	r.HandleFunc("/cs", a.serveServers).Methods(http.MethodGet)

	cs := r.PathPrefix("/cs/{id:[0-9]+}").Subrouter()
	cs.HandleFunc("", a.serveStatus).Methods(http.MethodGet)
	cs.HandleFunc("/", a.serveStatus).Methods(http.MethodGet)
	cs.HandleFunc("/maps", a.serveMaps).Methods(http.MethodGet)
	cs.HandleFunc("/events", a.serveEvents).Methods(http.MethodGet)

	game := cs.PathPrefix("/game").Subrouter()
	game.Use(a.requireActivePlayer)
	game.HandleFunc("/restart", a.serveGameCommand((*servers.Server).RestartGame)).Methods(http.MethodPost)
	game.HandleFunc("/pause", a.serveGameCommand((*servers.Server).PauseGame)).Methods(http.MethodPost)
	game.HandleFunc("/unpause", a.serveGameCommand((*servers.Server).UnpauseGame)).Methods(http.MethodPost)
	game.HandleFunc("/map", a.serveSetMap).Methods(http.MethodPost)
	game.HandleFunc("/teams", a.serveSetTeams).Methods(http.MethodPost)

	return WithCORS(r)
}

// WithCORS allows any origin and answers preflight requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) serveTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"ip": ClientIP(r)})
}

type serverView struct {
	ID   int    `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a *API) serveServers(w http.ResponseWriter, r *http.Request) {
	configs := a.Registry.Configs()
	list := make([]serverView, 0, len(configs))
	for _, c := range configs {
		list = append(list, serverView{ID: c.ID, Host: c.Host, Port: c.Port})
	}
	writeJSON(w, list)
}

func (a *API) serveStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := a.server(w, r)
	if !ok {
		return
	}
	snap, err := s.Status(r.Context(), ClientIP(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (a *API) serveMaps(w http.ResponseWriter, r *http.Request) {
	s, ok := a.server(w, r)
	if !ok {
		return
	}
	maps, err := s.ListMaps(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, maps)
}

// requireActivePlayer lets a request through only when the caller is
// playing on the server.
func (a *API) requireActivePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := a.server(w, r)
		if !ok {
			return
		}
		snap, err := s.Status(r.Context(), ClientIP(r))
		if err != nil {
			a.writeError(w, fmt.Errorf("Unexpected error %w", err))
			return
		}
		if !hasActivePlayer(snap) {
			a.writeError(w, errors.New("Not connected to server"))
			return
		}
		ctx := context.WithValue(r.Context(), serverKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func hasActivePlayer(snap *status.Snapshot) bool {
	for _, p := range snap.Players {
		if p.Active {
			return true
		}
	}
	return false
}

func (a *API) serveGameCommand(run func(*servers.Server, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := r.Context().Value(serverKey).(*servers.Server)
		if err := run(s, r.Context()); err != nil {
			a.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) serveSetMap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Map string `json:"map"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s := r.Context().Value(serverKey).(*servers.Server)
	if err := s.SetMap(r.Context(), body.Map); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) serveSetTeams(w http.ResponseWriter, r *http.Request) {
	var names servers.TeamNames
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s := r.Context().Value(serverKey).(*servers.Server)
	if err := s.SetTeamNames(r.Context(), names); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// server resolves {id} to a connected server, writing the error response
// when that fails.
func (a *API) server(w http.ResponseWriter, r *http.Request) (*servers.Server, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid server id", http.StatusBadRequest)
		return nil, false
	}
	s, err := a.Registry.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return nil, false
	}
	return s, true
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, servers.ErrUnknownServer) {
		code = http.StatusNotFound
	} else {
		a.Log.Warn("request failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
