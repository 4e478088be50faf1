// Package cache implements the relay's flight cache: an in-memory store of
// the drone's last known telemetry and configuration. Event handlers write it
// on every drone event and command gating and per-client initial snapshots
// read it, so it is the single source of truth for "what the drone last said".
package cache

import (
	"sync"
)

// Cache key constants. Keys are open-ended; these cover everything the relay
// itself reads back.
const (
	KeyGPSFixed              = "gpsFixed"
	KeyAltitude              = "altitude"
	KeyFlyingState           = "flyingState"
	KeyCanTakeOff            = "canTakeOff"
	KeyCameraMaxTiltSpeed    = "cameraMaxTiltSpeed"
	KeyCameraMaxPanSpeed     = "cameraMaxPanSpeed"
	KeyDefaultCameraTilt     = "defaultCameraTilt"
	KeyDefaultCameraPan      = "defaultCameraPan"
	KeyLastCalibrationStatus = "lastCalibrationStatus"
	KeyLastHardwareStatus    = "lastHardwareStatus"
	KeyLastHomeTypeStatus    = "lastHomeTypeStatus"
	KeyLastRTHStatus         = "lastRTHStatus"
	KeyTakeOffAt             = "takeOffAt"
	KeyDroneConnected        = "isDroneConnected"
	KeyBatteryPercent        = "batteryPercent"
	KeyLatitude              = "latitude"
	KeyLongitude             = "longitude"
	KeyAutonomyEnabled       = "autonomyEnabled"
	KeyFlightPlanAvailable   = "flightPlanAvailable"

	// Calibration flags that must be false before take-off is allowed.
	KeyPitotCalibrationRequired   = "pitotCalibrationRequired"
	KeyMagnetoCalibrationRequired = "magnetoCalibrationRequired"

	// Per-sensor health flags that must be true before take-off is allowed.
	KeySensorIMU            = "sensorIMU"
	KeySensorBarometer      = "sensorBarometer"
	KeySensorUltrasonic     = "sensorUltrasonic"
	KeySensorGPS            = "sensorGPS"
	KeySensorMagnetometer   = "sensorMagnetometer"
	KeySensorMotor          = "sensorMotor"
	KeySensorVerticalCamera = "sensorVerticalCamera"
)

// Cache stores arbitrary values by key. Values are last-writer-wins; callers
// are responsible for the semantics of what they store.
type Cache struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates a Cache pre-populated with defaults. The map is copied, so the
// caller may reuse it.
func New(defaults map[string]any) *Cache {
	values := make(map[string]any, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &Cache{values: values}
}

// Defaults returns the initial cache contents for a freshly started relay,
// before any drone event has been observed.
func Defaults() map[string]any {
	return map[string]any{
		KeyGPSFixed:                   false,
		KeyAltitude:                   float64(0),
		KeyFlyingState:                "landed",
		KeyCanTakeOff:                 false,
		KeyCameraMaxTiltSpeed:         float64(0),
		KeyCameraMaxPanSpeed:          float64(0),
		KeyDefaultCameraTilt:          float64(0),
		KeyDefaultCameraPan:           float64(0),
		KeyLastCalibrationStatus:      false,
		KeyLastHardwareStatus:         true,
		KeyLastHomeTypeStatus:         false,
		KeyLastRTHStatus:              false,
		KeyTakeOffAt:                  int64(-1),
		KeyDroneConnected:             false,
		KeyPitotCalibrationRequired:   false,
		KeyMagnetoCalibrationRequired: false,
		KeySensorIMU:                  true,
		KeySensorBarometer:            true,
		KeySensorUltrasonic:           true,
		KeySensorGPS:                  true,
		KeySensorMagnetometer:         true,
		KeySensorMotor:                true,
		KeySensorVerticalCamera:       true,
		KeyFlightPlanAvailable:        false,
	}
}

// Get returns the value for key, or nil when the key has never been set.
func (c *Cache) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// GetBool returns the value for key as a bool. Missing keys and values of
// other types read as false.
func (c *Cache) GetBool(key string) bool {
	v, _ := c.Get(key).(bool)
	return v
}

// GetFloat returns the value for key as a float64. Integer values are
// widened; missing keys read as 0.
func (c *Cache) GetFloat(key string) float64 {
	switch v := c.Get(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// GetInt returns the value for key as an int64, or 0 when missing or of
// another type.
func (c *Cache) GetInt(key string) int64 {
	switch v := c.Get(key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetString returns the value for key as a string, or "" when missing.
func (c *Cache) GetString(key string) string {
	v, _ := c.Get(key).(string)
	return v
}

// Set stores value under key, replacing any previous value.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Clear removes every key.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
}

// CanTakeOff computes the take-off gate: both calibration-required flags must
// be false and every subsystem health flag must be true, including flight-plan
// availability.
func (c *Cache) CanTakeOff() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	calibrationClear := !c.boolLocked(KeyPitotCalibrationRequired) &&
		!c.boolLocked(KeyMagnetoCalibrationRequired)

	healthy := c.boolLocked(KeySensorIMU) &&
		c.boolLocked(KeySensorBarometer) &&
		c.boolLocked(KeySensorUltrasonic) &&
		c.boolLocked(KeySensorGPS) &&
		c.boolLocked(KeySensorMotor) &&
		c.boolLocked(KeySensorMagnetometer) &&
		c.boolLocked(KeySensorVerticalCamera) &&
		c.boolLocked(KeyFlightPlanAvailable)

	return calibrationClear && healthy
}

func (c *Cache) boolLocked(key string) bool {
	v, _ := c.values[key].(bool)
	return v
}
