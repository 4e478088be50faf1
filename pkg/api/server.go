// Package api is the relay's HTTP surface: the operator endpoints for token
// validation, session inspection, and live permission overrides, plus the
// flight plan download used by the map UI. The signaling websocket is mounted
// here as well so the whole relay sits behind one listener.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/discofleet/skylink/pkg/auth"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/flightplan"
	"github.com/discofleet/skylink/pkg/protocol"
	"github.com/discofleet/skylink/pkg/session"
)

// Config holds API server settings.
type Config struct {
	// FlightPlanDir is where .mavlink mission files live.
	FlightPlanDir string
}

// Server serves the operator API.
type Server struct {
	cfg      Config
	sessions *session.Registry
	catalog  *auth.Catalog
	out      *fanout.Sender
	mux      *http.ServeMux
}

// NewServer builds the API mux. The signaling handler may be nil in tests
// that only exercise the REST endpoints.
func NewServer(cfg Config, sessions *session.Registry, catalog *auth.Catalog, out *fanout.Sender, signaling http.Handler) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		catalog:  catalog,
		out:      out,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/token/check", s.handleTokenCheck)
	s.mux.HandleFunc("GET /api/users", s.handleUsers)
	s.mux.HandleFunc("GET /api/user/{id}/permissions", s.handlePermissions)
	s.mux.HandleFunc("GET /api/user/{id}/permission/{key}/set/{value}", s.handleSetPermission)
	s.mux.HandleFunc("GET /flightplans/{name}", s.handleFlightPlan)

	if signaling != nil {
		s.mux.Handle("/ws", signaling)
	}
	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type tokenCheckRequest struct {
	Token string `json:"token"`
}

// handleTokenCheck lets the UI validate an access token before the user
// submits it over the data channel.
func (s *Server) handleTokenCheck(w http.ResponseWriter, r *http.Request) {
	var req tokenCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !s.catalog.IsKnown(req.Token) {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"status": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"status": true})
}

type userSummary struct {
	ID string `json:"id"`
	IP string `json:"ip"`
	session.Permissions
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	sessions := s.sessions.Users()
	users := make([]userSummary, 0, len(sessions))
	for _, sess := range sessions {
		users = append(users, userSummary{
			ID:          sess.ID,
			IP:          sess.IP,
			Permissions: sess.Permissions,
		})
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	perms, ok := s.sessions.Permissions(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

// handleSetPermission flips one capability on a live session and tells the
// affected client about it so its UI updates immediately.
func (s *Server) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.Exists(id) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	key := r.PathValue("key")
	enabled := r.PathValue("value") == "1"

	if err := s.sessions.SetPermission(id, key, enabled); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.out.ToSession(id, protocol.Packet{
		Action: "permission",
		Data:   map[string]bool{key: enabled},
	})

	perms, _ := s.sessions.Permissions(id)
	writeJSON(w, http.StatusOK, perms)
}

func (s *Server) handleFlightPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := flightplan.Load(s.cfg.FlightPlanDir, r.PathValue("name"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Printf("api: flight plan %s: %v", r.PathValue("name"), err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
