package drone

import (
	"context"
)

// Client is the vehicle link. Connect must succeed before any command is
// submitted; Discover is the blocking reconnection probe used after a link
// loss. Events delivers decoded drone events until the client is closed.
type Client interface {
	// Connect establishes the control and telemetry link.
	Connect(ctx context.Context) error
	// Discover probes for the drone after a disconnect and reports whether
	// the link came back. It blocks for the duration of the probe.
	Discover(ctx context.Context) bool
	// Events returns the decoded event stream.
	Events() <-chan Event
	// Axes returns the shared piloting axes submitted each piloting tick.
	Axes() *Axes

	Piloting() Piloting
	Camera() Camera
	GPSSettings() GPSSettings
	PilotingSettings() PilotingSettings
	Mavlink() Mavlink
	MediaStreaming() MediaStreaming
}

// Piloting issues flight commands.
type Piloting interface {
	TakeOff() error
	Land() error
	Circle(direction string) error
	ReturnToHome() error
	StopReturnToHome() error
	Emergency() error
	MoveTo(latitude, longitude, altitude float64) error
}

// Camera drives the gimbal.
type Camera interface {
	// Move nudges the gimbal at the given tilt/pan speeds in degrees/s.
	Move(tilt, pan float64) error
	// MoveTo points the gimbal at an absolute orientation in degrees.
	MoveTo(tilt, pan float64) error
}

// GPSSettings configures home and controller positions.
type GPSSettings interface {
	ResetHome() error
	SetHomeLocation(latitude, longitude, altitude float64) error
	SendControllerGPS(latitude, longitude, altitude, horizontalAccuracy, verticalAccuracy float64) error
	SetHomeType(homeType int) error
}

// PilotingSettings configures flight limits.
type PilotingSettings interface {
	SetMaxAltitude(meters float64) error
	SetMaxDistance(meters float64) error
}

// Mavlink controls autonomous flight-plan playback.
type Mavlink interface {
	Start(filename string) error
	Pause() error
	Stop() error
}

// MediaStreaming controls the drone's video output.
type MediaStreaming interface {
	EnableVideoStream() error
}
