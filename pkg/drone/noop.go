package drone

import (
	"context"
)

// Noop is a Client that accepts every command and emits no events. It backs
// the UI-only startup mode where no drone is reachable.
type Noop struct {
	axes   Axes
	events chan Event
}

// NewNoop creates a Noop client.
func NewNoop() *Noop {
	return &Noop{events: make(chan Event)}
}

func (n *Noop) Connect(context.Context) error { return nil }
func (n *Noop) Discover(context.Context) bool { return true }
func (n *Noop) Events() <-chan Event          { return n.events }
func (n *Noop) Axes() *Axes                   { return &n.axes }

func (n *Noop) Piloting() Piloting                 { return noopPiloting{} }
func (n *Noop) Camera() Camera                     { return noopCamera{} }
func (n *Noop) GPSSettings() GPSSettings           { return noopGPSSettings{} }
func (n *Noop) PilotingSettings() PilotingSettings { return noopPilotingSettings{} }
func (n *Noop) Mavlink() Mavlink                   { return noopMavlink{} }
func (n *Noop) MediaStreaming() MediaStreaming     { return noopMediaStreaming{} }

type noopPiloting struct{}

func (noopPiloting) TakeOff() error               { return nil }
func (noopPiloting) Land() error                  { return nil }
func (noopPiloting) Circle(string) error          { return nil }
func (noopPiloting) ReturnToHome() error          { return nil }
func (noopPiloting) StopReturnToHome() error      { return nil }
func (noopPiloting) Emergency() error             { return nil }
func (noopPiloting) MoveTo(_, _, _ float64) error { return nil }

type noopCamera struct{}

func (noopCamera) Move(_, _ float64) error   { return nil }
func (noopCamera) MoveTo(_, _ float64) error { return nil }

type noopGPSSettings struct{}

func (noopGPSSettings) ResetHome() error                              { return nil }
func (noopGPSSettings) SetHomeLocation(_, _, _ float64) error         { return nil }
func (noopGPSSettings) SendControllerGPS(_, _, _, _, _ float64) error { return nil }
func (noopGPSSettings) SetHomeType(int) error                         { return nil }

type noopPilotingSettings struct{}

func (noopPilotingSettings) SetMaxAltitude(float64) error { return nil }
func (noopPilotingSettings) SetMaxDistance(float64) error { return nil }

type noopMavlink struct{}

func (noopMavlink) Start(string) error { return nil }
func (noopMavlink) Pause() error       { return nil }
func (noopMavlink) Stop() error        { return nil }

type noopMediaStreaming struct{}

func (noopMediaStreaming) EnableVideoStream() error { return nil }
