package supervisor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/session"
)

// --- fakes, local to keep the package independent ---

type fakeTrack struct{ id string }

func (t *fakeTrack) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (t *fakeTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (t *fakeTrack) ID() string                            { return t.id }
func (t *fakeTrack) RID() string                           { return "" }
func (t *fakeTrack) StreamID() string                      { return "test" }
func (t *fakeTrack) Kind() webrtc.RTPCodecType             { return webrtc.RTPCodecTypeVideo }

type fakePipeline struct {
	running    bool
	track      *fakeTrack
	startCount int
	stopCount  int
}

func (p *fakePipeline) Start(context.Context) error {
	p.startCount++
	p.running = true
	p.track = &fakeTrack{id: "track-" + string(rune('0'+p.startCount))}
	return nil
}
func (p *fakePipeline) Stop() error {
	p.stopCount++
	p.running = false
	return nil
}
func (p *fakePipeline) Running() bool { return p.running }
func (p *fakePipeline) Output() webrtc.TrackLocal {
	if p.track == nil {
		return nil
	}
	return p.track
}

type fakePeer struct {
	sent     [][]byte
	attached []webrtc.TrackLocal
	detached []webrtc.TrackLocal
}

func (p *fakePeer) Send(data []byte) error { p.sent = append(p.sent, data); return nil }
func (p *fakePeer) AttachTrack(t webrtc.TrackLocal) error {
	p.attached = append(p.attached, t)
	return nil
}
func (p *fakePeer) DetachTrack(t webrtc.TrackLocal) error {
	p.detached = append(p.detached, t)
	return nil
}
func (p *fakePeer) Close() error { return nil }

func (p *fakePeer) countAlert(t *testing.T, level string) int {
	t.Helper()
	n := 0
	for _, raw := range p.sent {
		var pkt struct {
			Action string `json:"action"`
			Data   struct {
				Level string `json:"level"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &pkt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if pkt.Action == "alert" && pkt.Data.Level == level {
			n++
		}
	}
	return n
}

type fakeDrone struct {
	drone.Noop
	discoverResult bool
	discoverCalls  int
	videoEnabled   int
	rthStops       int
}

func (d *fakeDrone) Discover(context.Context) bool {
	d.discoverCalls++
	return d.discoverResult
}
func (d *fakeDrone) MediaStreaming() drone.MediaStreaming { return fakeMedia{d} }
func (d *fakeDrone) Piloting() drone.Piloting             { return fakePiloting{d, d.Noop.Piloting()} }

type fakeMedia struct{ d *fakeDrone }

func (m fakeMedia) EnableVideoStream() error { m.d.videoEnabled++; return nil }

type fakePiloting struct {
	d *fakeDrone
	drone.Piloting
}

func (p fakePiloting) StopReturnToHome() error { p.d.rthStops++; return nil }

// ---

type fixture struct {
	drone    *fakeDrone
	pipeline *fakePipeline
	sessions *session.Registry
	cache    *cache.Cache
	sup      *Supervisor
	peers    map[string]*fakePeer
}

func newFixture(discoverResult bool, cfg Config) *fixture {
	d := &fakeDrone{discoverResult: discoverResult}
	p := &fakePipeline{}
	reg := session.NewRegistry()
	c := cache.New(cache.Defaults())
	c.Set(cache.KeyDroneConnected, true)

	f := &fixture{
		drone:    d,
		pipeline: p,
		sessions: reg,
		cache:    c,
		sup:      New(cfg, d, p, reg, c, fanout.New(reg)),
		peers:    make(map[string]*fakePeer),
	}

	// Two connected clients watching an active video track.
	p.running = true
	p.track = &fakeTrack{id: "track-initial"}
	for _, id := range []string{"c1", "c2"} {
		peer := &fakePeer{}
		f.peers[id] = peer
		reg.Create(id, "10.0.0.1", session.Permissions{}, peer)
		reg.SetTrack(id, p.track)
	}
	return f
}

func TestFailedRediscovery(t *testing.T) {
	f := newFixture(false, Config{})

	f.sup.HandleDisconnect(context.Background())

	if f.cache.GetBool(cache.KeyDroneConnected) {
		t.Error("connectivity should stay false")
	}
	if f.pipeline.Running() {
		t.Error("pipeline should be stopped")
	}
	if f.pipeline.stopCount != 1 {
		t.Errorf("pipeline stops = %d, want 1", f.pipeline.stopCount)
	}
	for id, peer := range f.peers {
		sess, _ := f.sessions.Get(id)
		if sess.Track != nil {
			t.Errorf("%s track not cleared", id)
		}
		if len(peer.detached) != 1 {
			t.Errorf("%s detaches = %d, want 1", id, len(peer.detached))
		}
		if len(peer.attached) != 0 {
			t.Errorf("%s got a track reattached after failed probe", id)
		}
		if got := peer.countAlert(t, "danger"); got != 1 {
			t.Errorf("%s danger alerts = %d, want 1", id, got)
		}
	}
	if f.sup.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", f.sup.State())
	}
}

func TestSuccessfulRediscovery(t *testing.T) {
	f := newFixture(true, Config{CancelRTHOnRecover: true})

	f.sup.HandleDisconnect(context.Background())

	if !f.cache.GetBool(cache.KeyDroneConnected) {
		t.Error("connectivity should be restored")
	}
	if !f.pipeline.Running() {
		t.Error("pipeline should be restarted")
	}
	if f.drone.videoEnabled != 1 {
		t.Errorf("video stream enables = %d, want 1", f.drone.videoEnabled)
	}
	if f.drone.rthStops != 1 {
		t.Errorf("rth cancels = %d, want 1", f.drone.rthStops)
	}

	fresh := f.pipeline.Output()
	for id, peer := range f.peers {
		sess, _ := f.sessions.Get(id)
		if sess.Track != fresh {
			t.Errorf("%s should hold the fresh track", id)
		}
		if len(peer.attached) != 1 || peer.attached[0] != fresh {
			t.Errorf("%s attaches = %v, want the fresh track once", id, peer.attached)
		}
		if got := peer.countAlert(t, "success"); got != 1 {
			t.Errorf("%s success alerts = %d, want exactly 1", id, got)
		}
	}
	if f.sup.State() != StateConnected {
		t.Errorf("state = %v, want connected", f.sup.State())
	}
}

func TestOverlappingDisconnectCollapses(t *testing.T) {
	f := newFixture(false, Config{})

	// A probe is already in flight.
	f.sup.mu.Lock()
	f.sup.state = StateRediscovering
	f.sup.mu.Unlock()

	f.sup.HandleDisconnect(context.Background())

	if f.pipeline.stopCount != 0 {
		t.Error("collapsed event must not stop the pipeline again")
	}
	if f.drone.discoverCalls != 0 {
		t.Error("collapsed event must not start a second probe")
	}
	// The state packet still goes out.
	for id, peer := range f.peers {
		if len(peer.sent) != 1 {
			t.Errorf("%s packets = %d, want just the state packet", id, len(peer.sent))
		}
	}
}

func TestStateString(t *testing.T) {
	if StateRediscovering.String() != "rediscovering" {
		t.Errorf("String = %q", StateRediscovering.String())
	}
}
