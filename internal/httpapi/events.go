package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type eventPayload struct {
	Server int    `json:"server"`
	Error  string `json:"error,omitempty"`
}

// serveEvents streams connection events of one server as server-sent
// events until the client leaves or the connection ends.
func (a *API) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	s, ok := a.server(w, r)
	if !ok {
		return
	}
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload := eventPayload{Server: ev.ServerID}
			if ev.Err != nil {
				payload.Error = ev.Err.Error()
			}
			data, _ := json.Marshal(payload)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
