package disco

import (
	"fmt"
	"strings"

	"github.com/discofleet/skylink/pkg/drone"
)

// Command namespaces. Each is a thin encoder over Client.sendAck; the
// project/class/command numbers follow the ARSDK command tables.

type piloting struct{ c *Client }

func (p piloting) TakeOff() error {
	return p.c.sendAck(projectARDrone3, classPiloting, 1)
}

func (p piloting) Land() error {
	return p.c.sendAck(projectARDrone3, classPiloting, 3)
}

func (p piloting) Emergency() error {
	return p.c.sendAck(projectARDrone3, classPiloting, 4)
}

func (p piloting) ReturnToHome() error {
	return p.c.sendAck(projectARDrone3, classPiloting, 5, uint8(1))
}

func (p piloting) StopReturnToHome() error {
	return p.c.sendAck(projectARDrone3, classPiloting, 5, uint8(0))
}

func (p piloting) Circle(direction string) error {
	var dir int32
	switch strings.ToUpper(direction) {
	case "CW":
		dir = 0
	case "CCW":
		dir = 1
	default:
		return fmt.Errorf("disco: bad circle direction %q", direction)
	}
	return p.c.sendAck(projectARDrone3, classPiloting, 9, dir)
}

func (p piloting) MoveTo(latitude, longitude, altitude float64) error {
	// Orientation mode NONE: keep the current heading.
	return p.c.sendAck(projectARDrone3, classPiloting, 10,
		latitude, longitude, altitude, uint32(0), float32(0))
}

type camera struct{ c *Client }

func (cam camera) MoveTo(tilt, pan float64) error {
	return cam.c.sendAck(projectARDrone3, classCamera, 0, int8(tilt), int8(pan))
}

func (cam camera) Move(tilt, pan float64) error {
	return cam.c.sendAck(projectARDrone3, classCamera, 2, float32(tilt), float32(pan))
}

type gpsSettings struct{ c *Client }

func (g gpsSettings) SetHomeLocation(latitude, longitude, altitude float64) error {
	return g.c.sendAck(projectARDrone3, classGPSSettings, 0, latitude, longitude, altitude)
}

func (g gpsSettings) ResetHome() error {
	return g.c.sendAck(projectARDrone3, classGPSSettings, 1)
}

func (g gpsSettings) SendControllerGPS(latitude, longitude, altitude, horizontalAccuracy, verticalAccuracy float64) error {
	return g.c.sendAck(projectARDrone3, classGPSSettings, 2,
		latitude, longitude, altitude, horizontalAccuracy, verticalAccuracy)
}

func (g gpsSettings) SetHomeType(homeType int) error {
	return g.c.sendAck(projectARDrone3, classGPSSettings, 3, uint32(homeType))
}

type pilotingSettings struct{ c *Client }

func (s pilotingSettings) SetMaxAltitude(meters float64) error {
	return s.c.sendAck(projectARDrone3, classPilotingSettings, 0, float32(meters))
}

func (s pilotingSettings) SetMaxDistance(meters float64) error {
	return s.c.sendAck(projectARDrone3, classPilotingSettings, 3, float32(meters))
}

type mavlink struct{ c *Client }

func (m mavlink) Start(filename string) error {
	// Type 0 is a regular flight plan (1 would be a map-relative one).
	return m.c.sendAck(projectCommon, classCommonMavlink, 0, filename, uint32(0))
}

func (m mavlink) Pause() error {
	return m.c.sendAck(projectCommon, classCommonMavlink, 1)
}

func (m mavlink) Stop() error {
	return m.c.sendAck(projectCommon, classCommonMavlink, 2)
}

type mediaStreaming struct{ c *Client }

func (m mediaStreaming) EnableVideoStream() error {
	return m.c.sendAck(projectARDrone3, classMediaStreaming, 0, uint8(1))
}

var (
	_ drone.Piloting         = piloting{}
	_ drone.Camera           = camera{}
	_ drone.GPSSettings      = gpsSettings{}
	_ drone.PilotingSettings = pilotingSettings{}
	_ drone.Mavlink          = mavlink{}
	_ drone.MediaStreaming   = mediaStreaming{}
)
