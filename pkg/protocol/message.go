// Package protocol defines the JSON packet envelope exchanged with browser
// clients over the data channel, the typed payloads behind it, and the MQTT
// topic helpers for the fleet-map uplink.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Packet is the wire envelope, both directions.
type Packet struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

// Inbound is a received packet with the payload left undecoded; handlers
// decode Data into the payload type matching Action.
type Inbound struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
	Force  bool            `json:"force,omitempty"`
}

// --- inbound payloads ---

// MoveData carries piloting axis updates. Absent axes leave the current
// value untouched; explicit zeros release the axis.
type MoveData struct {
	Pitch    *int `json:"pitch,omitempty"`
	Roll     *int `json:"roll,omitempty"`
	Throttle *int `json:"throttle,omitempty"`
}

// CircleData selects a loiter direction, "CW" or "CCW" (any case on input).
type CircleData struct {
	Direction string `json:"direction"`
}

// Camera move kinds.
const (
	CameraAbsolute = "absolute"
	CameraDegrees  = "degrees"
)

// CameraData moves the gimbal: an absolute target position or a relative
// degrees nudge.
type CameraData struct {
	Type string  `json:"type"`
	Tilt float64 `json:"tilt"`
	Pan  float64 `json:"pan"`
}

// InitData authorizes a session by token.
type InitData struct {
	Token string `json:"token"`
}

// PongData echoes the ping timestamp back for latency measurement.
type PongData struct {
	Time int64 `json:"time"`
}

// GeofenceData reconfigures the flight fence.
type GeofenceData struct {
	MaxDistance float64 `json:"maxDistance"`
	MaxAltitude float64 `json:"maxAltitude"`
}

// HomeData sets the return-to-home location.
type HomeData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// AutonomousData toggles autonomy mode.
type AutonomousData struct {
	IsEnabled bool `json:"isEnabled"`
}

// --- outbound constructors ---

// Alert levels shown in the client UI.
const (
	AlertInfo    = "info"
	AlertSuccess = "success"
	AlertWarning = "warning"
	AlertDanger  = "danger"
)

// Alert builds an alert packet.
func Alert(level, message string) Packet {
	return Packet{Action: "alert", Data: map[string]any{
		"level":   level,
		"message": message,
	}}
}

// State builds a state packet from a partial set of state fields.
func State(fields map[string]any) Packet {
	return Packet{Action: "state", Data: fields}
}

// Battery builds a battery level packet.
func Battery(percent int) Packet {
	return Packet{Action: "battery", Data: map[string]any{"percent": percent}}
}

// Check builds a pre-flight check packet from a partial set of check flags.
func Check(fields map[string]any) Packet {
	return Packet{Action: "check", Data: fields}
}

// Latency builds the reply to a pong, carrying the round trip in ms.
func Latency(ms int64) Packet {
	return Packet{Action: "latency", Data: ms}
}

// Ping builds the periodic keepalive carrying the server timestamp.
func Ping(unixMilli int64) Packet {
	return Packet{Action: "ping", Data: map[string]any{"time": unixMilli}}
}

// Marshal serialises a packet to JSON bytes.
func Marshal(p Packet) ([]byte, error) {
	return json.Marshal(p)
}

// Decode deserialises JSON bytes into an Inbound packet.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	err := json.Unmarshal(data, &in)
	return in, err
}

// --- MQTT topic helpers for the fleet map ---

const topicPrefix = "skylink/drone"

// LocationTopic returns the fleet-map location topic for a drone.
//
//	skylink/drone/{id}/location
func LocationTopic(droneID string) string {
	return fmt.Sprintf("%s/%s/location", topicPrefix, droneID)
}

// AltitudeTopic returns the fleet-map altitude topic for a drone.
//
//	skylink/drone/{id}/altitude
func AltitudeTopic(droneID string) string {
	return fmt.Sprintf("%s/%s/altitude", topicPrefix, droneID)
}

// SpeedTopic returns the fleet-map speed topic for a drone.
//
//	skylink/drone/{id}/speed
func SpeedTopic(droneID string) string {
	return fmt.Sprintf("%s/%s/speed", topicPrefix, droneID)
}

// YawTopic returns the fleet-map heading topic for a drone.
//
//	skylink/drone/{id}/yaw
func YawTopic(droneID string) string {
	return fmt.Sprintf("%s/%s/yaw", topicPrefix, droneID)
}
