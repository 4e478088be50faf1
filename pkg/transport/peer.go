package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// signalMessage is the JSON envelope exchanged over the signaling socket.
// The shape matches what simple-peer emits on the browser side: session
// descriptions carry type+sdp, trickled candidates carry candidate.
type signalMessage struct {
	Type      string                   `json:"type,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Peer is one browser client: a PeerConnection with a single command data
// channel, plus the signaling socket it was negotiated over. The relay talks
// to it through the session.Peer interface.
type Peer struct {
	id string

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	senders map[webrtc.TrackLocal]*webrtc.RTPSender
	closed  bool

	ws   *websocket.Conn
	wsMu sync.Mutex
}

func newPeer(id string, pc *webrtc.PeerConnection, ws *websocket.Conn) *Peer {
	return &Peer{
		id:      id,
		pc:      pc,
		ws:      ws,
		senders: make(map[webrtc.TrackLocal]*webrtc.RTPSender),
	}
}

// ID returns the connection id assigned at upgrade time.
func (p *Peer) ID() string { return p.id }

// Send delivers one packet over the data channel. It fails until the channel
// has opened and after the peer is closed.
func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	dc := p.dc
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return errors.New("transport: peer closed")
	}
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return errors.New("transport: data channel not open")
	}
	return dc.Send(data)
}

// AttachTrack adds a local track to the connection and renegotiates so the
// browser starts receiving it.
func (p *Peer) AttachTrack(track webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("transport: peer closed")
	}
	if _, ok := p.senders[track]; ok {
		return nil
	}

	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("transport: add track: %w", err)
	}
	p.senders[track] = sender

	return p.renegotiateLocked()
}

// DetachTrack removes a previously attached track. Detaching a track that
// was never attached is a no-op.
func (p *Peer) DetachTrack(track webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sender, ok := p.senders[track]
	if !ok {
		return nil
	}
	delete(p.senders, track)

	if p.closed {
		return nil
	}
	if err := p.pc.RemoveTrack(sender); err != nil {
		return fmt.Errorf("transport: remove track: %w", err)
	}
	return p.renegotiateLocked()
}

// Close tears down the PeerConnection and the signaling socket.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.pc.Close()
	_ = p.ws.Close()
	return err
}

// renegotiateLocked creates a fresh offer and sends it down the signaling
// socket. Caller holds p.mu.
func (p *Peer) renegotiateLocked() error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("transport: create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("transport: set local description: %w", err)
	}
	return p.writeSignal(signalMessage{Type: offer.Type.String(), SDP: offer.SDP})
}

// handleSignal applies one inbound signaling message from the browser.
func (p *Peer) handleSignal(raw []byte) error {
	var msg signalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("transport: bad signal: %w", err)
	}

	switch {
	case msg.Type == "answer":
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}
		if err := p.pc.SetRemoteDescription(desc); err != nil {
			return fmt.Errorf("transport: set remote description: %w", err)
		}
		return nil
	case msg.Candidate != nil:
		if err := p.pc.AddICECandidate(*msg.Candidate); err != nil {
			return fmt.Errorf("transport: add candidate: %w", err)
		}
		return nil
	default:
		log.Printf("transport: %s sent unexpected signal type %q", p.id, msg.Type)
		return nil
	}
}

// writeSignal serializes one message onto the websocket. The gorilla conn
// does not allow concurrent writers, hence the dedicated mutex.
func (p *Peer) writeSignal(msg signalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal signal: %w", err)
	}
	p.wsMu.Lock()
	defer p.wsMu.Unlock()
	return p.ws.WriteMessage(websocket.TextMessage, data)
}
