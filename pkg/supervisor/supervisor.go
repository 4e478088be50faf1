// Package supervisor owns drone connectivity and the video pipeline
// lifecycle. It reacts to link-loss events: suspend fan-out state, tear the
// video path down, probe for the drone, and on success rebuild the video
// path for every still-connected session.
package supervisor

import (
	"context"
	"log"
	"sync"

	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/protocol"
	"github.com/discofleet/skylink/pkg/session"
	"github.com/discofleet/skylink/pkg/stream"
)

// State of the vehicle link.
type State int

const (
	// StateConnected: link up, video flowing.
	StateConnected State = iota
	// StateDisconnected: link down, no probe in progress.
	StateDisconnected
	// StateRediscovering: a probe is in flight; further disconnect events
	// are collapsed into it.
	StateRediscovering
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateRediscovering:
		return "rediscovering"
	}
	return "unknown"
}

// Config holds supervisor policy.
type Config struct {
	// CancelRTHOnRecover aborts an in-progress return-to-home once the link
	// is back, handing control to the operator again.
	CancelRTHOnRecover bool
}

// Supervisor drives the link state machine.
type Supervisor struct {
	cfg      Config
	drone    drone.Client
	pipeline stream.Pipeline
	sessions *session.Registry
	cache    *cache.Cache
	out      *fanout.Sender

	mu    sync.Mutex
	state State
}

// New creates a Supervisor in the Connected state.
func New(cfg Config, dr drone.Client, pipeline stream.Pipeline, sessions *session.Registry, c *cache.Cache, out *fanout.Sender) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		drone:    dr,
		pipeline: pipeline,
		sessions: sessions,
		cache:    c,
		out:      out,
		state:    StateConnected,
	}
}

// State returns the current link state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleDisconnect runs the full reaction to a vehicle-link loss. It blocks
// for the duration of the single rediscovery probe; there is no retry loop.
// A later disconnect event triggers the sequence again.
func (s *Supervisor) HandleDisconnect(ctx context.Context) {
	// Connectivity state goes out on every disconnect event, even ones
	// collapsed into an in-flight probe.
	s.cache.Set(cache.KeyDroneConnected, false)
	s.out.ToAll(protocol.State(map[string]any{"isDroneConnected": false}))

	s.mu.Lock()
	if s.state == StateRediscovering {
		s.mu.Unlock()
		return
	}
	s.state = StateRediscovering
	s.mu.Unlock()

	log.Printf("supervisor: drone disconnected, rediscovering..")

	if err := s.pipeline.Stop(); err != nil {
		log.Printf("supervisor: pipeline stop: %v", err)
	}

	for _, sess := range s.sessions.Users() {
		if sess.Track == nil {
			continue
		}
		// Best-effort: the peer may be mid-teardown itself.
		_ = sess.Peer.DetachTrack(sess.Track)
		s.sessions.SetTrack(sess.ID, nil)
	}

	s.out.ToAll(protocol.Alert(protocol.AlertWarning, "Drone disconnected, reconnecting.."))

	recovered := s.drone.Discover(ctx)

	if recovered {
		s.recover(ctx)
	} else {
		log.Printf("supervisor: drone not discovered")
		s.out.ToAll(protocol.Alert(protocol.AlertDanger, "Drone not discovered"))
	}

	s.mu.Lock()
	if recovered {
		s.state = StateConnected
	} else {
		s.state = StateDisconnected
	}
	s.mu.Unlock()
}

func (s *Supervisor) recover(ctx context.Context) {
	log.Printf("supervisor: drone discovered again")

	s.cache.Set(cache.KeyDroneConnected, true)
	s.out.ToAll(protocol.State(map[string]any{"isDroneConnected": true}))
	s.out.ToAll(protocol.Alert(protocol.AlertSuccess, "Drone connected"))

	if err := s.drone.MediaStreaming().EnableVideoStream(); err != nil {
		log.Printf("supervisor: enable video stream: %v", err)
	}
	if err := s.pipeline.Start(ctx); err != nil {
		log.Printf("supervisor: pipeline start: %v", err)
		return
	}

	track := s.pipeline.Output()
	for _, sess := range s.sessions.Users() {
		if err := sess.Peer.AttachTrack(track); err != nil {
			log.Printf("supervisor: attach track to %s: %v", sess.ID, err)
			continue
		}
		s.sessions.SetTrack(sess.ID, track)
	}

	if s.cfg.CancelRTHOnRecover {
		if err := s.drone.Piloting().StopReturnToHome(); err != nil {
			log.Printf("supervisor: cancel rth: %v", err)
		}
	}
}
