// Package drone abstracts the vehicle link: a command-submission API split
// into the SDK's command namespaces, a stream of typed events decoded from
// the telemetry link, and the shared piloting axes submitted to the drone at
// the piloting tick rate. The binary protocol itself lives in the disco
// subpackage; everything above it works against the Client interface.
package drone

// Event is one decoded drone event. Handlers type-switch on the concrete
// event type.
type Event interface {
	event()
}

// FlyingState values reported by the drone.
type FlyingState string

const (
	FlyingStateLanded    FlyingState = "landed"
	FlyingStateTakingOff FlyingState = "takingoff"
	FlyingStateHovering  FlyingState = "hovering"
	FlyingStateFlying    FlyingState = "flying"
	FlyingStateLanding   FlyingState = "landing"
	FlyingStateEmergency FlyingState = "emergency"
)

// Sensor identifies a monitored hardware subsystem.
type Sensor string

const (
	SensorIMU            Sensor = "IMU"
	SensorBarometer      Sensor = "barometer"
	SensorUltrasonic     Sensor = "ultrasonic"
	SensorGPS            Sensor = "GPS"
	SensorMagnetometer   Sensor = "magnetometer"
	SensorMotor          Sensor = "motor"
	SensorVerticalCamera Sensor = "verticalCamera"
)

// Disconnected signals loss of the vehicle link.
type Disconnected struct{}

// BatteryChanged reports the battery charge in percent.
type BatteryChanged struct {
	Percent int
}

// GPSFixChanged reports whether the GPS has a fix.
type GPSFixChanged struct {
	Fixed bool
}

// SatelliteCountChanged reports the number of visible satellites.
type SatelliteCountChanged struct {
	Count int
}

// AltitudeChanged reports the altitude above take-off in meters.
type AltitudeChanged struct {
	Altitude float64
}

// AttitudeChanged reports the airframe attitude in radians.
type AttitudeChanged struct {
	Pitch float64
	Roll  float64
	Yaw   float64
}

// SpeedChanged reports ground speed components in m/s.
type SpeedChanged struct {
	SpeedX float64
	SpeedY float64
	SpeedZ float64
}

// PositionChanged reports the GPS position.
type PositionChanged struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// FlyingStateChanged reports a flying-state transition.
type FlyingStateChanged struct {
	State FlyingState
}

// AvailabilityChanged is the drone's own take-off readiness signal. It is
// combined with the aggregate hardware health before being surfaced to
// clients.
type AvailabilityChanged struct {
	Available bool
}

// SensorStateChanged reports one subsystem turning healthy or unhealthy.
type SensorStateChanged struct {
	Sensor Sensor
	OK     bool
}

// MagnetoCalibrationRequired reports whether the magnetometer needs
// calibration.
type MagnetoCalibrationRequired struct {
	Required bool
}

// PitotCalibrationRequired reports whether the pitot tube needs calibration.
type PitotCalibrationRequired struct {
	Required bool
}

// FlightPlanAvailabilityChanged reports whether an autonomous flight plan can
// currently be started.
type FlightPlanAvailabilityChanged struct {
	Available bool
}

// HomeTypeChosen reports the return-home target the drone actually picked.
type HomeTypeChosen struct {
	Type string // "TAKEOFF", "PILOT", "FIRST_FIX"
}

// HomeTypeChanged reports the configured preferred return-home target.
type HomeTypeChanged struct {
	Type string
}

// HomeChanged reports the return-home location.
type HomeChanged struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// CameraDefaultsChanged reports the gimbal's default orientation.
type CameraDefaultsChanged struct {
	Tilt float64
	Pan  float64
}

// CameraMaxSpeedChanged reports the gimbal's maximum tilt and pan speeds in
// degrees per second.
type CameraMaxSpeedChanged struct {
	Tilt float64
	Pan  float64
}

// CameraOrientation reports the current gimbal orientation.
type CameraOrientation struct {
	Tilt float64
	Pan  float64
}

// VideoRecordStateChanged reports on-board recording starting or stopping.
type VideoRecordStateChanged struct {
	Recording bool
}

// MavlinkPlayingStateChanged reports flight-plan execution state.
type MavlinkPlayingStateChanged struct {
	State string // "playing", "paused", "stopped"
}

// MoveToChanged reports the status of a direct moveTo command.
type MoveToChanged struct {
	Status string
}

// MissionItemExecuted reports a completed flight-plan waypoint.
type MissionItemExecuted struct {
	Index int
}

// NavigateHomeStateChanged reports return-to-home progress.
type NavigateHomeStateChanged struct {
	State string
}

// AlertStateChanged reports a drone-side alert condition.
type AlertStateChanged struct {
	State string // "user", "cut_out", "critical_battery", "low_battery", "none"
}

// VibrationLevelChanged reports the airframe vibration classification.
type VibrationLevelChanged struct {
	State string
}

func (Disconnected) event()                  {}
func (BatteryChanged) event()                {}
func (GPSFixChanged) event()                 {}
func (SatelliteCountChanged) event()         {}
func (AltitudeChanged) event()               {}
func (AttitudeChanged) event()               {}
func (SpeedChanged) event()                  {}
func (PositionChanged) event()               {}
func (FlyingStateChanged) event()            {}
func (AvailabilityChanged) event()           {}
func (SensorStateChanged) event()            {}
func (MagnetoCalibrationRequired) event()    {}
func (PitotCalibrationRequired) event()      {}
func (FlightPlanAvailabilityChanged) event() {}
func (HomeTypeChosen) event()                {}
func (HomeTypeChanged) event()               {}
func (HomeChanged) event()                   {}
func (CameraDefaultsChanged) event()         {}
func (CameraMaxSpeedChanged) event()         {}
func (CameraOrientation) event()             {}
func (VideoRecordStateChanged) event()       {}
func (MavlinkPlayingStateChanged) event()    {}
func (MoveToChanged) event()                 {}
func (MissionItemExecuted) event()           {}
func (NavigateHomeStateChanged) event()      {}
func (AlertStateChanged) event()             {}
func (VibrationLevelChanged) event()         {}
