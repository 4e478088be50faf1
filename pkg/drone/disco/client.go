// Package disco speaks the Parrot Disco's network protocol: a JSON handshake
// over TCP to negotiate ports, then ARNetworkAL frames over UDP in both
// directions. It stays deliberately thin; everything above the wire lives in
// the packages working against drone.Client.
package disco

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/discofleet/skylink/pkg/drone"
)

// Config holds the network parameters of the vehicle link.
type Config struct {
	// Address of the drone on its wifi network.
	Address string
	// DiscoveryPort is the TCP handshake port.
	DiscoveryPort int
	// D2CPort is the local UDP port telemetry arrives on.
	D2CPort int
	// ControllerName announced during the handshake.
	ControllerName string
	// PCMDHz is the piloting-command submission rate.
	PCMDHz int
	// ReadTimeout before the link is considered lost.
	ReadTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = "192.168.42.1"
	}
	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = 44444
	}
	if c.D2CPort == 0 {
		c.D2CPort = 43210
	}
	if c.ControllerName == "" {
		c.ControllerName = "skylink"
	}
	if c.PCMDHz <= 0 {
		c.PCMDHz = 25
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
}

// Client is the vehicle link to a physical Disco.
type Client struct {
	cfg    Config
	axes   drone.Axes
	events chan drone.Event

	mu       sync.Mutex
	conn     net.Conn       // UDP, controller to drone
	listener net.PacketConn // UDP, drone to controller
	stop     chan struct{}
	seq      map[uint8]uint8
}

// New creates a Client. Nothing is opened until Connect.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:    cfg,
		events: make(chan drone.Event, 64),
		seq:    make(map[uint8]uint8),
	}
}

// discoveryRequest is the JSON handshake sent on the TCP discovery port.
type discoveryRequest struct {
	ControllerType string `json:"controller_type"`
	ControllerName string `json:"controller_name"`
	D2CPort        int    `json:"d2c_port"`
}

// discoveryReply is the drone's handshake answer. Status zero means the
// drone accepted us as the controller.
type discoveryReply struct {
	Status  int `json:"status"`
	C2DPort int `json:"c2d_port"`
}

// Connect performs the discovery handshake and starts the telemetry and
// piloting pumps.
func (c *Client) Connect(ctx context.Context) error {
	reply, err := c.handshake(ctx)
	if err != nil {
		return err
	}

	listener, err := (&net.ListenConfig{}).ListenPacket(ctx, "udp",
		fmt.Sprintf(":%d", c.cfg.D2CPort))
	if err != nil {
		return fmt.Errorf("disco: listen d2c: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp",
		net.JoinHostPort(c.cfg.Address, fmt.Sprint(reply.C2DPort)))
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("disco: dial c2d: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.listener = listener
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.readLoop(listener, stop)
	go c.pcmdLoop(stop)

	log.Printf("disco: connected to %s, c2d port %d", c.cfg.Address, reply.C2DPort)
	return nil
}

// Discover probes for the drone after a link loss: tear the old sockets
// down, then attempt a fresh handshake and reconnect.
func (c *Client) Discover(ctx context.Context) bool {
	c.teardown()

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.Connect(probeCtx); err != nil {
		log.Printf("disco: discovery probe: %v", err)
		return false
	}
	return true
}

// Events returns the decoded event stream.
func (c *Client) Events() <-chan drone.Event { return c.events }

// Axes returns the shared piloting axes.
func (c *Client) Axes() *drone.Axes { return &c.axes }

func (c *Client) Piloting() drone.Piloting                 { return piloting{c} }
func (c *Client) Camera() drone.Camera                     { return camera{c} }
func (c *Client) GPSSettings() drone.GPSSettings           { return gpsSettings{c} }
func (c *Client) PilotingSettings() drone.PilotingSettings { return pilotingSettings{c} }
func (c *Client) Mavlink() drone.Mavlink                   { return mavlink{c} }
func (c *Client) MediaStreaming() drone.MediaStreaming     { return mediaStreaming{c} }

func (c *Client) handshake(ctx context.Context) (discoveryReply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp",
		net.JoinHostPort(c.cfg.Address, fmt.Sprint(c.cfg.DiscoveryPort)))
	if err != nil {
		return discoveryReply{}, fmt.Errorf("disco: discovery dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := discoveryRequest{
		ControllerType: "computer",
		ControllerName: c.cfg.ControllerName,
		D2CPort:        c.cfg.D2CPort,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return discoveryReply{}, fmt.Errorf("disco: discovery send: %w", err)
	}

	// The reply is a single JSON object, NUL terminated.
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return discoveryReply{}, fmt.Errorf("disco: discovery read: %w", err)
	}

	var reply discoveryReply
	raw := strings.TrimRight(string(buf[:n]), "\x00")
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return discoveryReply{}, fmt.Errorf("disco: discovery reply: %w", err)
	}
	if reply.Status != 0 {
		return discoveryReply{}, fmt.Errorf("disco: drone refused handshake, status %d", reply.Status)
	}
	return reply, nil
}

// readLoop pumps telemetry until the socket dies or goes silent longer than
// ReadTimeout, then emits a single Disconnected event.
func (c *Client) readLoop(listener net.PacketConn, stop <-chan struct{}) {
	buf := make([]byte, 65536)
	for {
		_ = listener.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		n, _, err := listener.ReadFrom(buf)
		if err != nil {
			select {
			case <-stop:
				// Torn down on purpose.
			default:
				log.Printf("disco: link lost: %v", err)
				c.events <- drone.Disconnected{}
			}
			return
		}

		frames, err := parseFrames(buf[:n])
		if err != nil {
			log.Printf("disco: %v", err)
			continue
		}
		for _, f := range frames {
			c.handleFrame(f)
		}
	}
}

func (c *Client) handleFrame(f frame) {
	// Acknowledge reliable frames: ack buffer id is the data buffer plus
	// 128, payload is the sequence number.
	if f.Type == frameTypeDataWithAck {
		if err := c.send(frameTypeAck, f.Buffer+128, []byte{f.Seq}); err != nil {
			log.Printf("disco: ack: %v", err)
		}
	}

	switch f.Buffer {
	case bufferPing:
		// Keepalive: echo the payload back on the pong buffer.
		if err := c.send(frameTypeData, bufferPong, f.Payload); err != nil {
			log.Printf("disco: pong: %v", err)
		}
	default:
		if f.Type == frameTypeAck {
			return
		}
		cmd, err := parseCommand(f.Payload)
		if err != nil {
			log.Printf("disco: %v", err)
			return
		}
		if ev := decodeEvent(cmd); ev != nil {
			select {
			case c.events <- ev:
			default:
				// The relay has stalled; dropping telemetry is better than
				// blocking the read loop.
			}
		}
	}
}

// pcmdLoop submits the piloting axes at the configured rate.
func (c *Client) pcmdLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.PCMDHz))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := c.axes.Snapshot()
			payload, err := encodeCommand(projectARDrone3, classPiloting, 2,
				uint8(snap.Flag),
				int8(snap.Roll), int8(snap.Pitch), int8(0), int8(snap.Throttle),
				uint32(time.Now().UnixMilli()))
			if err != nil {
				log.Printf("disco: pcmd: %v", err)
				continue
			}
			if err := c.send(frameTypeData, bufferC2DCommand, payload); err != nil {
				log.Printf("disco: pcmd send: %v", err)
			}
		}
	}
}

// sendAck encodes and submits one command on the reliable buffer.
func (c *Client) sendAck(project, class uint8, id uint16, args ...any) error {
	payload, err := encodeCommand(project, class, id, args...)
	if err != nil {
		return err
	}
	return c.send(frameTypeDataWithAck, bufferC2DWithAck, payload)
}

func (c *Client) send(frameType, buffer uint8, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("disco: not connected")
	}

	c.seq[buffer]++
	f := frame{Type: frameType, Buffer: buffer, Seq: c.seq[buffer], Payload: payload}
	_, err := c.conn.Write(f.marshal())
	return err
}

// teardown closes both sockets and stops the pumps. Safe to call when not
// connected.
func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.listener != nil {
		_ = c.listener.Close()
		c.listener = nil
	}
}

var _ drone.Client = (*Client)(nil)
