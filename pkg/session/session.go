// Package session tracks connected browser clients: their transport handle,
// capability grants, authorization state, and the media track currently
// attached to them.
package session

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Peer is the transport handle owned by a session: the data channel plus the
// signaling socket behind it. Sends are best-effort; the caller decides to
// ignore the error because the client may already be gone.
type Peer interface {
	Send(data []byte) error
	AttachTrack(track webrtc.TrackLocal) error
	DetachTrack(track webrtc.TrackLocal) error
	Close() error
}

// Permissions is the fixed capability set a session may hold. A fresh
// session holds none; a valid init token replaces the whole set at once.
type Permissions struct {
	IsSuperUser         bool `json:"isSuperUser"`
	CanPilotingPitch    bool `json:"canPilotingPitch"`
	CanPilotingRoll     bool `json:"canPilotingRoll"`
	CanPilotingThrottle bool `json:"canPilotingThrottle"`
	CanMoveCamera       bool `json:"canMoveCamera"`
	CanUseAutonomy      bool `json:"canUseAutonomy"`
}

// CanPilot reports whether the grant covers at least one piloting axis.
func (p Permissions) CanPilot() bool {
	return p.CanPilotingPitch || p.CanPilotingRoll || p.CanPilotingThrottle
}

// Session is one connected client.
type Session struct {
	ID          string
	IP          string
	Permissions Permissions
	Authorized  bool
	Peer        Peer
	// Track is the media track currently attached to the peer; reassigned by
	// the link supervisor after a reconnect.
	Track webrtc.TrackLocal
}

// Registry stores sessions by connection id. Read operations on unknown ids
// return zero values; write operations on unknown ids are silently ignored,
// so callers must guard with Exists where it matters.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new unauthorized session. The permission set should be
// all-false; authorization replaces it later.
func (r *Registry) Create(id, ip string, perms Permissions, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Session{
		ID:          id,
		IP:          ip,
		Permissions: perms,
		Peer:        peer,
	}
}

// Delete removes a session. Deletion does not cascade: axis zeroing, timer
// cancellation, and transport teardown are the caller's job.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Exists reports whether a session is registered under id.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Get returns a copy of the session for id. All read paths hand out copies:
// Permissions and Track are mutated under the registry lock, so a shared
// pointer read on another goroutine would race. Peer is write-once and safe
// to carry in the copy.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Permissions returns the session's capability set.
func (r *Registry) Permissions(id string) (Permissions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Permissions{}, false
	}
	return s.Permissions, true
}

// SetPermission flips a single capability by its wire name. Used by the
// administrative override endpoint. Unknown keys are an error; unknown ids
// are ignored.
func (r *Registry) SetPermission(id, key string, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	switch key {
	case "isSuperUser":
		s.Permissions.IsSuperUser = value
	case "canPilotingPitch":
		s.Permissions.CanPilotingPitch = value
	case "canPilotingRoll":
		s.Permissions.CanPilotingRoll = value
	case "canPilotingThrottle":
		s.Permissions.CanPilotingThrottle = value
	case "canMoveCamera":
		s.Permissions.CanMoveCamera = value
	case "canUseAutonomy":
		s.Permissions.CanUseAutonomy = value
	default:
		return fmt.Errorf("session: unknown permission %q", key)
	}
	return nil
}

// SetPermissions replaces the whole capability set at once. Used at
// authorization time so a session is never observed with a partial grant.
func (r *Registry) SetPermissions(id string, perms Permissions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Permissions = perms
	}
}

// SetAuthorized marks the session as token-authorized.
func (r *Registry) SetAuthorized(id string, authorized bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Authorized = authorized
	}
}

// SetTrack records the media track attached to the session's peer.
func (r *Registry) SetTrack(id string, track webrtc.TrackLocal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Track = track
	}
}

// Users returns a copied snapshot of all sessions.
func (r *Registry) Users() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// AuthorizedUsers returns a copied snapshot of sessions that completed a
// token exchange.
func (r *Registry) AuthorizedUsers() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Authorized {
			out = append(out, *s)
		}
	}
	return out
}
