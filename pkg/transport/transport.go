// Package transport accepts browser clients. Each client connects to a
// websocket endpoint used purely for WebRTC signaling; the relay itself is
// the offering side. Commands then travel over a single ordered data channel
// and the live video arrives on a track attached by the relay.
package transport

import (
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// Handlers are the callbacks the relay registers on the server. OnConnect
// fires once the client's data channel is open, OnMessage for every packet
// received on it, OnDisconnect when the signaling socket or the peer
// connection dies. OnDisconnect may fire without a preceding OnConnect when
// negotiation never completed.
type Handlers struct {
	OnConnect    func(id, ip string, peer *Peer)
	OnMessage    func(id string, data []byte)
	OnDisconnect func(id string)
}

// Config holds transport settings.
type Config struct {
	// ICEServers used for candidate gathering. Defaults to a public STUN
	// server; deployments behind symmetric NAT add their TURN entry here.
	ICEServers []webrtc.ICEServer
}

func (c *Config) applyDefaults() {
	if len(c.ICEServers) == 0 {
		c.ICEServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
}

// Server upgrades signaling websockets and negotiates one Peer per client.
// It implements http.Handler and is mounted by the API server.
type Server struct {
	cfg      Config
	handlers Handlers
	upgrader websocket.Upgrader
}

// NewServer creates a transport server with the given callbacks.
func NewServer(cfg Config, handlers Handlers) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:      cfg,
		handlers: handlers,
		upgrader: websocket.Upgrader{
			// The UI is served from a different origin than the relay.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: upgrade: %v", err)
		return
	}

	id := uuid.NewString()
	ip := remoteIP(r)
	log.Printf("transport: connection %s from %s, creating peer..", id, ip)

	peer, err := s.negotiate(id, ip, ws)
	if err != nil {
		log.Printf("transport: %s: %v", id, err)
		_ = ws.Close()
		return
	}

	// Signaling pump. Runs until the socket dies, which is also how peer
	// failure is surfaced (the state handler closes the socket).
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		if err := peer.handleSignal(raw); err != nil {
			log.Printf("transport: %s: %v", id, err)
		}
	}

	log.Printf("transport: %s disconnected", id)
	if s.handlers.OnDisconnect != nil {
		s.handlers.OnDisconnect(id)
	}
	_ = peer.Close()
}

// negotiate builds the PeerConnection, wires its callbacks, and sends the
// initial offer containing the command data channel.
func (s *Server) negotiate(id, ip string, ws *websocket.Conn) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: s.cfg.ICEServers,
	})
	if err != nil {
		return nil, err
	}

	peer := newPeer(id, pc, ws)

	ordered := true
	dc, err := pc.CreateDataChannel("data", &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	var connectOnce sync.Once
	dc.OnOpen(func() {
		connectOnce.Do(func() {
			log.Printf("transport: %s data channel open", id)
			if s.handlers.OnConnect != nil {
				s.handlers.OnConnect(id, ip, peer)
			}
		})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(id, msg.Data)
		}
	})

	peer.mu.Lock()
	peer.dc = dc
	peer.mu.Unlock()

	// Trickle candidates to the browser as they are found.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if err := peer.writeSignal(signalMessage{Candidate: &init}); err != nil {
			log.Printf("transport: %s candidate send: %v", id, err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("transport: %s state %s", id, state)
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			// Ends the signaling pump, which runs the disconnect path.
			_ = ws.Close()
		}
	})

	peer.mu.Lock()
	err = peer.renegotiateLocked()
	peer.mu.Unlock()
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	return peer, nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
