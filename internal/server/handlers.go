// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the room discovery API.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/lobby"
)

// WebSocketHandler upgrades GET requests on /ws and attaches a lobby session
// to the connection.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	sess := lobby.NewSession(r.RemoteAddr, s.cfg.SendQueueSize)
	if !s.hub.register(sess, conn) {
		_ = conn.Close()
		return
	}

	// The hub slot is released by run; the handler returns right away.
	go newWSClient(conn, sess, s).run()
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Lobby relay server is running!")
}

type memberView struct {
	Index     int      `json:"index"`
	Nickname  string   `json:"nickname"`
	Admin     bool     `json:"admin"`
	LatencyMS *float64 `json:"latency_ms,omitempty"`
}

type roomView struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Members      []memberView `json:"members"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
}

type roomsResponse struct {
	Rooms    []roomView `json:"rooms"`
	Sessions int        `json:"sessions"`
}

// RoomsHandler serves a JSON snapshot of the room directory. Ids are
// strings because they exceed the integer range of JavaScript numbers.
func (s *Server) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.directory.Snapshot()
	resp := roomsResponse{Rooms: make([]roomView, 0, len(snapshot)), Sessions: s.hub.count()}
	for _, room := range snapshot {
		view := roomView{
			ID:           room.ID.String(),
			Name:         room.Name,
			Members:      make([]memberView, 0, len(room.Members)),
			CreatedAt:    room.CreatedAt,
			LastActivity: room.LastActivity,
		}
		for _, m := range room.Members {
			mv := memberView{Index: m.Index, Nickname: m.Nickname, Admin: m.Admin}
			if m.Measured {
				ms := float64(m.Latency) / float64(time.Millisecond)
				mv.LatencyMS = &ms
			}
			view.Members = append(view.Members, mv)
		}
		resp.Rooms = append(resp.Rooms, view)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("error writing rooms response", "err", err)
	}
}
