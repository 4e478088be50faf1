// Package fanout broadcasts packets to connected sessions. Every send is
// best-effort: a client may disconnect mid-send, so transport errors are
// dropped here and never propagate.
package fanout

import (
	"log"

	"github.com/discofleet/skylink/pkg/protocol"
	"github.com/discofleet/skylink/pkg/session"
)

// Sender fans packets out over the session registry.
type Sender struct {
	sessions *session.Registry
}

// New creates a Sender over the given registry.
func New(sessions *session.Registry) *Sender {
	return &Sender{sessions: sessions}
}

// ToAll sends the packet to every connected session.
func (s *Sender) ToAll(p protocol.Packet) {
	s.sendTo(s.sessions.Users(), p)
}

// ToAuthorized sends the packet to every session that completed a token
// exchange.
func (s *Sender) ToAuthorized(p protocol.Packet) {
	s.sendTo(s.sessions.AuthorizedUsers(), p)
}

// ToSession sends the packet to one session, if it still exists.
func (s *Sender) ToSession(id string, p protocol.Packet) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return
	}
	s.sendTo([]session.Session{sess}, p)
}

func (s *Sender) sendTo(targets []session.Session, p protocol.Packet) {
	data, err := protocol.Marshal(p)
	if err != nil {
		log.Printf("fanout: marshal %s packet: %v", p.Action, err)
		return
	}
	for _, sess := range targets {
		// Best-effort: the peer may already be gone.
		_ = sess.Peer.Send(data)
	}
}
