// Package relay ties the pieces together: it pumps drone events into the
// telemetry broadcaster and the link supervisor, and owns the per-client
// lifecycle from data channel open to teardown.
package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/protocol"
	"github.com/discofleet/skylink/pkg/router"
	"github.com/discofleet/skylink/pkg/session"
	"github.com/discofleet/skylink/pkg/stream"
	"github.com/discofleet/skylink/pkg/supervisor"
	"github.com/discofleet/skylink/pkg/telemetry"
)

// keepaliveInterval is how often each client gets a ping packet carrying the
// server timestamp; the client echoes it back as pong for latency tracking.
const keepaliveInterval = time.Second

// Relay is the composition root for a single drone.
type Relay struct {
	drone       drone.Client
	router      *router.Router
	broadcaster *telemetry.Broadcaster
	supervisor  *supervisor.Supervisor
	sessions    *session.Registry
	cache       *cache.Cache
	pipeline    stream.Pipeline
	out         *fanout.Sender

	mu         sync.Mutex
	keepalives map[string]chan struct{}

	now func() time.Time
}

// New creates a Relay over already-constructed components.
func New(
	dr drone.Client,
	rt *router.Router,
	bc *telemetry.Broadcaster,
	sup *supervisor.Supervisor,
	sessions *session.Registry,
	c *cache.Cache,
	pipeline stream.Pipeline,
	out *fanout.Sender,
) *Relay {
	return &Relay{
		drone:       dr,
		router:      rt,
		broadcaster: bc,
		supervisor:  sup,
		sessions:    sessions,
		cache:       c,
		pipeline:    pipeline,
		out:         out,
		keepalives:  make(map[string]chan struct{}),
		now:         time.Now,
	}
}

// Run pumps drone events until ctx is cancelled or the event stream closes.
// Link loss goes to the supervisor, which blocks the pump for the duration
// of the rediscovery probe; events arriving while the drone is gone would be
// stale anyway.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-r.drone.Events():
			if !ok {
				log.Printf("relay: event stream closed")
				return nil
			}
			if _, ok := ev.(drone.Disconnected); ok {
				r.supervisor.HandleDisconnect(ctx)
				continue
			}
			r.broadcaster.Handle(ev)
		}
	}
}

// HandleConnect registers a fresh session with no capabilities, attaches the
// live video track if one is flowing, starts the keepalive, and sends the
// state snapshot the UI renders from.
func (r *Relay) HandleConnect(id, ip string, peer session.Peer) {
	r.sessions.Create(id, ip, session.Permissions{}, peer)
	log.Printf("relay: client %s connected from %s", id, ip)

	if r.pipeline.Running() {
		if track := r.pipeline.Output(); track != nil {
			if err := peer.AttachTrack(track); err != nil {
				log.Printf("relay: attach track to %s: %v", id, err)
			} else {
				r.sessions.SetTrack(id, track)
			}
		}
	}

	stop := make(chan struct{})
	r.mu.Lock()
	r.keepalives[id] = stop
	r.mu.Unlock()
	go r.keepalive(id, stop)

	r.sendSnapshot(id)
}

// HandleMessage routes one inbound packet.
func (r *Relay) HandleMessage(id string, data []byte) {
	r.router.Dispatch(id, data)
}

// HandleDisconnect stops the keepalive and tears the session down.
func (r *Relay) HandleDisconnect(id string) {
	r.mu.Lock()
	if stop, ok := r.keepalives[id]; ok {
		close(stop)
		delete(r.keepalives, id)
	}
	r.mu.Unlock()

	r.router.Teardown(id)
	log.Printf("relay: client %s disconnected", id)
}

func (r *Relay) keepalive(id string, stop <-chan struct{}) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.out.ToSession(id, protocol.Ping(r.now().UnixMilli()))
		}
	}
}

// sendSnapshot delivers the current drone state to one freshly connected
// client, one packet per UI concern.
func (r *Relay) sendSnapshot(id string) {
	takeOffAt := r.cache.GetInt(cache.KeyTakeOffAt)
	var flyingTime int64
	if takeOffAt >= 0 {
		flyingTime = r.now().UnixMilli() - takeOffAt
	}

	packets := []protocol.Packet{
		{Action: "init"},
		protocol.State(map[string]any{
			"flyingTime":       flyingTime,
			"flyingState":      r.cache.GetString(cache.KeyFlyingState),
			"canTakeOff":       r.cache.GetBool(cache.KeyCanTakeOff),
			"isDroneConnected": r.cache.GetBool(cache.KeyDroneConnected),
		}),
		protocol.Battery(int(r.cache.GetInt(cache.KeyBatteryPercent))),
		{Action: "gps", Data: map[string]any{
			"isFixed": r.cache.GetBool(cache.KeyGPSFixed),
		}},
		{Action: "altitude", Data: r.cache.GetFloat(cache.KeyAltitude)},
		{Action: "flyingState", Data: r.cache.GetString(cache.KeyFlyingState)},
		{Action: "canTakeOff", Data: r.cache.GetBool(cache.KeyCanTakeOff)},
		{Action: "camera", Data: map[string]any{
			"maxSpeed": map[string]any{
				"maxTiltSpeed": r.cache.GetFloat(cache.KeyCameraMaxTiltSpeed),
				"maxPanSpeed":  r.cache.GetFloat(cache.KeyCameraMaxPanSpeed),
			},
		}},
		protocol.Check(map[string]any{
			"lastRTHStatus":         r.cache.GetBool(cache.KeyLastRTHStatus),
			"lastHomeTypeStatus":    r.cache.GetBool(cache.KeyLastHomeTypeStatus),
			"lastCalibrationStatus": r.cache.GetBool(cache.KeyLastCalibrationStatus),
			"lastHardwareStatus":    r.cache.GetBool(cache.KeyLastHardwareStatus),
		}),
	}

	for _, pkt := range packets {
		r.out.ToSession(id, pkt)
	}
}
