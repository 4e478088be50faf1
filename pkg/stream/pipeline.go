// Package stream owns the video pipeline: it receives the drone's RTP video
// on a UDP port and republishes it on a local WebRTC track that the relay
// attaches to every client peer. Each Start produces a fresh track, which is
// what lets the link supervisor hand all clients a new one after a reconnect.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Pipeline is the video pipeline contract the relay and supervisor work
// against.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	// Output returns the current track, or nil before the first Start.
	Output() webrtc.TrackLocal
}

// Config holds pipeline settings.
type Config struct {
	// ListenAddr is the UDP address the drone's RTP video arrives on.
	ListenAddr string
	// MimeType of the incoming video; the Parrot stream is H264.
	MimeType string
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:55004"
	}
	if c.MimeType == "" {
		c.MimeType = webrtc.MimeTypeH264
	}
}

// RTPPipeline forwards RTP from the drone's UDP video port into a local
// static RTP track.
type RTPPipeline struct {
	cfg Config

	mu      sync.Mutex
	conn    net.PacketConn
	track   *webrtc.TrackLocalStaticRTP
	running bool
}

// NewRTPPipeline creates a pipeline; nothing is opened until Start.
func NewRTPPipeline(cfg Config) *RTPPipeline {
	cfg.applyDefaults()
	return &RTPPipeline{cfg: cfg}
}

// Start opens the UDP listener, creates a fresh output track, and begins
// forwarding. Starting a running pipeline is an error.
func (p *RTPPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("stream: pipeline already running")
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: p.cfg.MimeType},
		"video", "skylink",
	)
	if err != nil {
		return fmt.Errorf("stream: create track: %w", err)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", p.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("stream: listen %s: %w", p.cfg.ListenAddr, err)
	}

	p.conn = conn
	p.track = track
	p.running = true

	go p.forward(conn, track)

	log.Printf("stream: pipeline started on %s", p.cfg.ListenAddr)
	return nil
}

// Stop closes the listener, which ends the forwarding loop. The last track
// stays readable from Output until the next Start replaces it.
func (p *RTPPipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	err := p.conn.Close()
	p.conn = nil
	log.Printf("stream: pipeline stopped")
	return err
}

// Running reports whether the pipeline is forwarding.
func (p *RTPPipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Output returns the track created by the most recent Start.
func (p *RTPPipeline) Output() webrtc.TrackLocal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return nil
	}
	return p.track
}

func (p *RTPPipeline) forward(conn net.PacketConn, track *webrtc.TrackLocalStaticRTP) {
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			// Closed by Stop, or the socket died; either way the loop ends.
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			log.Printf("stream: bad rtp packet: %v", err)
			continue
		}

		// ErrClosedPipe means no peer is bound yet; that is normal between
		// a reconnect and the first reattachment.
		if err := track.WriteRTP(&pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			log.Printf("stream: track write: %v", err)
		}
	}
}
