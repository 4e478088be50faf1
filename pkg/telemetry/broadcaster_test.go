package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/session"
)

type fakePeer struct {
	sent [][]byte
}

func (p *fakePeer) Send(data []byte) error              { p.sent = append(p.sent, data); return nil }
func (p *fakePeer) AttachTrack(webrtc.TrackLocal) error { return nil }
func (p *fakePeer) DetachTrack(webrtc.TrackLocal) error { return nil }
func (p *fakePeer) Close() error                        { return nil }

func (p *fakePeer) countAction(t *testing.T, action string) int {
	t.Helper()
	n := 0
	for _, raw := range p.sent {
		var pkt struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(raw, &pkt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if pkt.Action == action {
			n++
		}
	}
	return n
}

func newBroadcaster(t *testing.T) (*Broadcaster, *cache.Cache, *fakePeer) {
	t.Helper()
	reg := session.NewRegistry()
	peer := &fakePeer{}
	reg.Create("c1", "10.0.0.1", session.Permissions{}, peer)
	c := cache.New(cache.Defaults())
	return New(Config{}, c, fanout.New(reg), nil), c, peer
}

func TestAltitudeThrottleKeepsCacheFresh(t *testing.T) {
	b, c, peer := newBroadcaster(t)

	for i := 1; i <= 10; i++ {
		b.Handle(drone.AltitudeChanged{Altitude: float64(i * 10)})
	}

	if got := peer.countAction(t, "altitude"); got != 1 {
		t.Errorf("altitude packets = %d, want 1 within one throttle window", got)
	}
	// The cache always reflects the newest event, throttled or not.
	if got := c.GetFloat(cache.KeyAltitude); got != 100 {
		t.Errorf("cached altitude = %v, want 100", got)
	}
}

func TestBatteryIsUnthrottled(t *testing.T) {
	b, _, peer := newBroadcaster(t)

	b.Handle(drone.BatteryChanged{Percent: 90})
	b.Handle(drone.BatteryChanged{Percent: 89})

	if got := peer.countAction(t, "battery"); got != 2 {
		t.Errorf("battery packets = %d, want 2", got)
	}
}

func TestAvailabilityCombinedWithHardwareHealth(t *testing.T) {
	b, c, peer := newBroadcaster(t)

	// Unhealthy motor first: availability claims must then be ignored.
	b.Handle(drone.SensorStateChanged{Sensor: drone.SensorMotor, OK: false})
	b.Handle(drone.AvailabilityChanged{Available: true})

	if c.GetBool(cache.KeyCanTakeOff) {
		t.Error("canTakeOff honored despite unhealthy hardware")
	}
	if got := peer.countAction(t, "canTakeOff"); got != 0 {
		t.Errorf("canTakeOff packets = %d, want 0 while unhealthy", got)
	}

	// Recovered: the next availability event goes through.
	b.Handle(drone.SensorStateChanged{Sensor: drone.SensorMotor, OK: true})
	b.Handle(drone.AvailabilityChanged{Available: true})

	if !c.GetBool(cache.KeyCanTakeOff) {
		t.Error("canTakeOff should be honored once hardware is healthy")
	}
	if got := peer.countAction(t, "canTakeOff"); got != 1 {
		t.Errorf("canTakeOff packets = %d, want 1", got)
	}
}

func TestSensorFailureRevokesCanTakeOff(t *testing.T) {
	b, c, peer := newBroadcaster(t)

	b.Handle(drone.AvailabilityChanged{Available: true})
	if !c.GetBool(cache.KeyCanTakeOff) {
		t.Fatal("setup: canTakeOff should be true")
	}

	b.Handle(drone.SensorStateChanged{Sensor: drone.SensorGPS, OK: false})

	if c.GetBool(cache.KeyCanTakeOff) {
		t.Error("sensor failure must revoke canTakeOff")
	}
	if c.GetBool(cache.KeySensorGPS) || c.GetBool(cache.KeyLastHardwareStatus) {
		t.Error("sensor flag and hardware aggregate should both be false")
	}
	// One broadcast for the grant, one for the revocation.
	if got := peer.countAction(t, "canTakeOff"); got != 2 {
		t.Errorf("canTakeOff packets = %d, want 2", got)
	}
}

func TestFlyingStateTracksTakeOffTime(t *testing.T) {
	b, c, _ := newBroadcaster(t)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Handle(drone.FlyingStateChanged{State: drone.FlyingStateTakingOff})
	if got := c.GetInt(cache.KeyTakeOffAt); got != now.UnixMilli() {
		t.Errorf("takeOffAt = %d, want %d", got, now.UnixMilli())
	}

	b.Handle(drone.FlyingStateChanged{State: drone.FlyingStateLanded})
	if got := c.GetInt(cache.KeyTakeOffAt); got != -1 {
		t.Errorf("takeOffAt after landing = %d, want -1", got)
	}
	if got := c.GetString(cache.KeyFlyingState); got != "landed" {
		t.Errorf("flyingState = %q, want landed", got)
	}
}

func TestMagnetoCalibrationAlert(t *testing.T) {
	b, c, peer := newBroadcaster(t)

	b.Handle(drone.MagnetoCalibrationRequired{Required: true})

	if c.GetBool(cache.KeyLastCalibrationStatus) {
		t.Error("lastCalibrationStatus should be false while calibration pending")
	}
	if got := peer.countAction(t, "alert"); got != 1 {
		t.Errorf("alert packets = %d, want 1", got)
	}
	if got := peer.countAction(t, "check"); got != 1 {
		t.Errorf("check packets = %d, want 1", got)
	}
}

func TestCameraMaxSpeedCachedAndBroadcast(t *testing.T) {
	b, c, peer := newBroadcaster(t)

	b.Handle(drone.CameraMaxSpeedChanged{Tilt: 35, Pan: 60})

	if got := c.GetFloat(cache.KeyCameraMaxTiltSpeed); got != 35 {
		t.Errorf("cached max tilt speed = %v, want 35", got)
	}
	if got := c.GetFloat(cache.KeyCameraMaxPanSpeed); got != 60 {
		t.Errorf("cached max pan speed = %v, want 60", got)
	}
	if got := peer.countAction(t, "camera"); got != 1 {
		t.Errorf("camera packets = %d, want 1", got)
	}
}

func TestCameraDefaultsCachedSilently(t *testing.T) {
	b, c, peer := newBroadcaster(t)

	b.Handle(drone.CameraDefaultsChanged{Tilt: -10, Pan: 5})

	if got := c.GetFloat(cache.KeyDefaultCameraTilt); got != -10 {
		t.Errorf("cached default tilt = %v, want -10", got)
	}
	if got := c.GetFloat(cache.KeyDefaultCameraPan); got != 5 {
		t.Errorf("cached default pan = %v, want 5", got)
	}
	if len(peer.sent) != 0 {
		t.Errorf("defaults produced %d packets, want none", len(peer.sent))
	}
}

func TestAuthorizedOnlyAlerts(t *testing.T) {
	reg := session.NewRegistry()
	viewer := &fakePeer{}
	operator := &fakePeer{}
	reg.Create("viewer", "ip1", session.Permissions{}, viewer)
	reg.Create("operator", "ip2", session.Permissions{}, operator)
	reg.SetAuthorized("operator", true)

	b := New(Config{}, cache.New(cache.Defaults()), fanout.New(reg), nil)
	b.Handle(drone.MissionItemExecuted{Index: 3})

	if got := operator.countAction(t, "alert"); got != 1 {
		t.Errorf("operator alerts = %d, want 1", got)
	}
	if got := viewer.countAction(t, "alert"); got != 0 {
		t.Errorf("viewer alerts = %d, want 0", got)
	}
}

type fakeFleet struct {
	locations int
	altitudes int
}

func (f *fakeFleet) PublishLocation(_, _ float64) { f.locations++ }
func (f *fakeFleet) PublishAltitude(float64)      { f.altitudes++ }
func (f *fakeFleet) PublishSpeed(float64)         {}
func (f *fakeFleet) PublishYaw(float64)           {}

func TestFleetMirroringFollowsThrottle(t *testing.T) {
	reg := session.NewRegistry()
	fleet := &fakeFleet{}
	b := New(Config{}, cache.New(cache.Defaults()), fanout.New(reg), fleet)

	for i := 0; i < 5; i++ {
		b.Handle(drone.PositionChanged{Latitude: 53.35, Longitude: 17.64})
		b.Handle(drone.AltitudeChanged{Altitude: 80})
	}

	if fleet.locations != 1 || fleet.altitudes != 1 {
		t.Errorf("fleet publishes = %d/%d, want 1/1 in one window", fleet.locations, fleet.altitudes)
	}
}
