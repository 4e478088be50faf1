// Package telemetry translates drone events into cache writes and outbound
// packets. The cache is updated on every event; fan-out of the chatty
// telemetry classes is throttled so arrival rate never dictates send rate.
package telemetry

import (
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/protocol"
)

// Throttled packet classes.
const (
	classAltitude = "altitude"
	classAttitude = "attitude"
	classGPS      = "gps"
	classSpeed    = "speed"
	classCamera   = "camera"
)

// FleetPublisher mirrors selected telemetry to the global fleet map. Sends
// are fire-and-forget; implementations log their own failures.
type FleetPublisher interface {
	PublishLocation(latitude, longitude float64)
	PublishAltitude(altitude float64)
	PublishSpeed(speed float64)
	PublishYaw(yaw float64)
}

// Config holds broadcaster tuning.
type Config struct {
	// ThrottleInterval is the minimum spacing between outbound packets of
	// one throttled class. Defaults to one second.
	ThrottleInterval time.Duration
}

// Broadcaster fans drone events out to sessions.
type Broadcaster struct {
	cache    *cache.Cache
	out      *fanout.Sender
	fleet    FleetPublisher // may be nil
	limiters map[string]*rate.Limiter

	now func() time.Time
}

// New creates a Broadcaster. fleet may be nil when no fleet-map uplink is
// configured.
func New(cfg Config, c *cache.Cache, out *fanout.Sender, fleet FleetPublisher) *Broadcaster {
	interval := cfg.ThrottleInterval
	if interval <= 0 {
		interval = time.Second
	}
	limiters := make(map[string]*rate.Limiter)
	for _, class := range []string{classAltitude, classAttitude, classGPS, classSpeed, classCamera} {
		limiters[class] = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Broadcaster{
		cache:    c,
		out:      out,
		fleet:    fleet,
		limiters: limiters,
		now:      time.Now,
	}
}

// Handle processes one drone event: cache writes always, packets according
// to class policy.
func (b *Broadcaster) Handle(ev drone.Event) {
	switch e := ev.(type) {
	case drone.BatteryChanged:
		b.cache.Set(cache.KeyBatteryPercent, e.Percent)
		b.out.ToAll(protocol.Battery(e.Percent))

	case drone.GPSFixChanged:
		b.cache.Set(cache.KeyGPSFixed, e.Fixed)
		b.out.ToAll(protocol.Packet{Action: "gps", Data: map[string]any{"isFixed": e.Fixed}})

	case drone.SatelliteCountChanged:
		b.out.ToAll(protocol.Packet{Action: "gps", Data: map[string]any{"satellites": e.Count}})

	case drone.AltitudeChanged:
		b.cache.Set(cache.KeyAltitude, e.Altitude)
		if b.allow(classAltitude) {
			b.out.ToAll(protocol.Packet{Action: "altitude", Data: e.Altitude})
			if b.fleet != nil {
				b.fleet.PublishAltitude(e.Altitude)
			}
		}

	case drone.AttitudeChanged:
		if b.allow(classAttitude) {
			b.out.ToAll(protocol.Packet{Action: "attitude", Data: map[string]any{
				"pitch": e.Pitch,
				"roll":  e.Roll,
				"yaw":   e.Yaw,
			}})
			if b.fleet != nil {
				b.fleet.PublishYaw(e.Yaw)
			}
		}

	case drone.SpeedChanged:
		ground := math.Hypot(e.SpeedX, e.SpeedY)
		if b.allow(classSpeed) {
			b.out.ToAll(protocol.Packet{Action: "speed", Data: ground})
			if b.fleet != nil {
				b.fleet.PublishSpeed(ground)
			}
		}

	case drone.PositionChanged:
		b.cache.Set(cache.KeyLatitude, e.Latitude)
		b.cache.Set(cache.KeyLongitude, e.Longitude)
		if b.allow(classGPS) {
			b.out.ToAll(protocol.Packet{Action: "gps", Data: map[string]any{
				"location": map[string]any{
					"latitude":  e.Latitude,
					"longitude": e.Longitude,
				},
			}})
			if b.fleet != nil {
				b.fleet.PublishLocation(e.Latitude, e.Longitude)
			}
		}

	case drone.FlyingStateChanged:
		b.handleFlyingState(e)

	case drone.AvailabilityChanged:
		// The drone's own readiness claim is trusted only while the
		// aggregate hardware health is good; otherwise a healthy-looking
		// availability flip could race a failing sensor.
		if b.cache.GetBool(cache.KeyLastHardwareStatus) {
			b.cache.Set(cache.KeyCanTakeOff, e.Available)
			b.out.ToAll(protocol.Packet{Action: "canTakeOff", Data: e.Available})
		}

	case drone.SensorStateChanged:
		b.handleSensorState(e)

	case drone.MagnetoCalibrationRequired:
		b.cache.Set(cache.KeyMagnetoCalibrationRequired, e.Required)
		b.cache.Set(cache.KeyLastCalibrationStatus, !e.Required)
		b.out.ToAll(protocol.Check(map[string]any{"lastCalibrationStatus": !e.Required}))
		if e.Required {
			b.out.ToAll(protocol.Alert(protocol.AlertDanger, "Magneto need calibration"))
		}

	case drone.PitotCalibrationRequired:
		b.cache.Set(cache.KeyPitotCalibrationRequired, e.Required)
		b.out.ToAll(protocol.Check(map[string]any{"lastPitotStatus": !e.Required}))
		if e.Required {
			b.out.ToAll(protocol.Alert(protocol.AlertDanger, "Pitot need calibration"))
		}

	case drone.FlightPlanAvailabilityChanged:
		b.cache.Set(cache.KeyFlightPlanAvailable, e.Available)
		b.out.ToAll(protocol.Check(map[string]any{"flightPlanAvailable": e.Available}))

	case drone.HomeTypeChosen:
		isTakeOff := e.Type == "TAKEOFF"
		b.cache.Set(cache.KeyLastRTHStatus, isTakeOff)
		b.out.ToAll(protocol.Check(map[string]any{"lastRTHStatus": isTakeOff}))

	case drone.HomeTypeChanged:
		isTakeOff := e.Type == "TAKEOFF"
		b.cache.Set(cache.KeyLastHomeTypeStatus, isTakeOff)
		b.out.ToAll(protocol.Check(map[string]any{"lastHomeTypeStatus": isTakeOff}))

	case drone.HomeChanged:
		b.out.ToAll(protocol.Packet{Action: "home", Data: map[string]any{
			"latitude":  e.Latitude,
			"longitude": e.Longitude,
			"altitude":  e.Altitude,
		}})

	case drone.CameraDefaultsChanged:
		// Feeds the camera-center intent; nothing to broadcast.
		b.cache.Set(cache.KeyDefaultCameraTilt, e.Tilt)
		b.cache.Set(cache.KeyDefaultCameraPan, e.Pan)

	case drone.CameraMaxSpeedChanged:
		b.cache.Set(cache.KeyCameraMaxTiltSpeed, e.Tilt)
		b.cache.Set(cache.KeyCameraMaxPanSpeed, e.Pan)
		b.out.ToAll(protocol.Packet{Action: "camera", Data: map[string]any{
			"maxSpeed": map[string]any{
				"maxTiltSpeed": e.Tilt,
				"maxPanSpeed":  e.Pan,
			},
		}})

	case drone.CameraOrientation:
		if b.allow(classCamera) {
			b.out.ToAll(protocol.Packet{Action: "camera", Data: map[string]any{
				"orientation": map[string]any{
					"tilt": e.Tilt,
					"pan":  e.Pan,
				},
			}})
		}

	case drone.VideoRecordStateChanged:
		if e.Recording {
			b.out.ToAll(protocol.Alert(protocol.AlertInfo, "Recording has been started"))
		} else {
			b.out.ToAll(protocol.Alert(protocol.AlertInfo, "Recording has been stopped"))
		}

	case drone.MavlinkPlayingStateChanged:
		switch e.State {
		case "playing":
			b.out.ToAll(protocol.Alert(protocol.AlertSuccess, "Flight plan start confirmed"))
		case "paused":
			b.out.ToAll(protocol.Alert(protocol.AlertInfo, "Flight plan paused"))
		case "stopped":
			b.out.ToAll(protocol.Alert(protocol.AlertInfo, "Flight plan stopped"))
		}

	case drone.MoveToChanged:
		b.out.ToAuthorized(protocol.Alert(protocol.AlertSuccess, "MoveTo got "+e.Status))

	case drone.MissionItemExecuted:
		b.out.ToAuthorized(protocol.Alert(protocol.AlertSuccess, fmt.Sprintf("Executed waypoint #%d", e.Index)))

	case drone.NavigateHomeStateChanged:
		b.out.ToAuthorized(protocol.Alert(protocol.AlertInfo, "Navigate home "+e.State))

	case drone.AlertStateChanged:
		b.handleAlertState(e)

	case drone.VibrationLevelChanged:
		b.out.ToAuthorized(protocol.Alert(protocol.AlertInfo, "Vibration level "+e.State))

	case drone.Disconnected:
		// Owned by the link supervisor, not telemetry.

	default:
		log.Printf("telemetry: unhandled event %T", ev)
	}
}

func (b *Broadcaster) handleFlyingState(e drone.FlyingStateChanged) {
	b.cache.Set(cache.KeyFlyingState, string(e.State))

	switch e.State {
	case drone.FlyingStateTakingOff:
		b.cache.Set(cache.KeyTakeOffAt, b.now().UnixMilli())
	case drone.FlyingStateLanded, drone.FlyingStateEmergency:
		b.cache.Set(cache.KeyTakeOffAt, int64(-1))
	}

	b.out.ToAll(protocol.Packet{Action: "flyingState", Data: string(e.State)})
}

func (b *Broadcaster) handleSensorState(e drone.SensorStateChanged) {
	key, ok := sensorKey(e.Sensor)
	if !ok {
		log.Printf("telemetry: unknown sensor %q", e.Sensor)
		return
	}
	b.cache.Set(key, e.OK)

	healthy := b.cache.GetBool(cache.KeySensorIMU) &&
		b.cache.GetBool(cache.KeySensorBarometer) &&
		b.cache.GetBool(cache.KeySensorUltrasonic) &&
		b.cache.GetBool(cache.KeySensorGPS) &&
		b.cache.GetBool(cache.KeySensorMagnetometer) &&
		b.cache.GetBool(cache.KeySensorMotor) &&
		b.cache.GetBool(cache.KeySensorVerticalCamera)
	b.cache.Set(cache.KeyLastHardwareStatus, healthy)

	b.out.ToAll(protocol.Packet{Action: "health", Data: map[string]any{
		"sensor": string(e.Sensor),
		"ok":     e.OK,
	}})
	b.out.ToAll(protocol.Check(map[string]any{"lastHardwareStatus": healthy}))

	if !e.OK {
		b.out.ToAuthorized(protocol.Alert(protocol.AlertDanger, string(e.Sensor)+" sensor unhealthy"))
	}
	if !healthy && b.cache.GetBool(cache.KeyCanTakeOff) {
		b.cache.Set(cache.KeyCanTakeOff, false)
		b.out.ToAll(protocol.Packet{Action: "canTakeOff", Data: false})
	}
}

func (b *Broadcaster) handleAlertState(e drone.AlertStateChanged) {
	switch e.State {
	case "none":
		return
	case "cut_out":
		b.out.ToAll(protocol.Alert(protocol.AlertDanger, "Motor cut out"))
	case "critical_battery":
		b.out.ToAll(protocol.Alert(protocol.AlertDanger, "Critical battery level"))
	case "low_battery":
		b.out.ToAll(protocol.Alert(protocol.AlertWarning, "Low battery level"))
	default:
		b.out.ToAuthorized(protocol.Alert(protocol.AlertWarning, "Drone alert: "+e.State))
	}
}

func (b *Broadcaster) allow(class string) bool {
	return b.limiters[class].Allow()
}

func sensorKey(s drone.Sensor) (string, bool) {
	switch s {
	case drone.SensorIMU:
		return cache.KeySensorIMU, true
	case drone.SensorBarometer:
		return cache.KeySensorBarometer, true
	case drone.SensorUltrasonic:
		return cache.KeySensorUltrasonic, true
	case drone.SensorGPS:
		return cache.KeySensorGPS, true
	case drone.SensorMagnetometer:
		return cache.KeySensorMagnetometer, true
	case drone.SensorMotor:
		return cache.KeySensorMotor, true
	case drone.SensorVerticalCamera:
		return cache.KeySensorVerticalCamera, true
	}
	return "", false
}
