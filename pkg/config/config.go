// Package config loads the relay configuration from a single YAML file.
// Every field has a working default so a bare binary flies a drone on the
// standard Parrot network addresses; the file only overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/discofleet/skylink/pkg/session"
)

// Config is the master configuration for the relay.
type Config struct {
	// Server configures the HTTP listener carrying the API and signaling.
	Server ServerConfig `yaml:"server"`

	// Drone configures the vehicle link and piloting limits.
	Drone DroneConfig `yaml:"drone"`

	// Stream configures the RTP video ingest.
	Stream StreamConfig `yaml:"stream"`

	// Telemetry configures event fan-out.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// FleetMap configures the optional MQTT position uplink.
	FleetMap FleetMapConfig `yaml:"fleet_map"`

	// FlightPlanDir is where .mavlink mission files live.
	FlightPlanDir string `yaml:"flight_plan_dir"`

	// Tokens maps access tokens to capability grants. Empty means the
	// built-in catalog.
	Tokens map[string]TokenGrant `yaml:"tokens"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Listen is the bind address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// CertFile, KeyFile, CAFile enable mTLS on the listener when all set.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// DroneConfig configures the vehicle link.
type DroneConfig struct {
	// Address of the drone on its wifi network.
	Address string `yaml:"address"`

	// NoDrone starts the relay without a vehicle link, serving the UI only.
	NoDrone bool `yaml:"no_drone"`

	// Axis limits applied to every piloting command.
	PitchLimit    int `yaml:"pitch_limit"`
	RollLimit     int `yaml:"roll_limit"`
	ThrottleLimit int `yaml:"throttle_limit"`

	// CancelRTHOnRecover aborts an in-progress return-to-home after a
	// successful reconnect.
	CancelRTHOnRecover bool `yaml:"cancel_rth_on_recover"`
}

// StreamConfig configures the RTP video ingest.
type StreamConfig struct {
	// Listen is the UDP address the drone sends RTP video to.
	Listen string `yaml:"listen"`
}

// TelemetryConfig configures event fan-out.
type TelemetryConfig struct {
	// ThrottleMs is the minimum gap between broadcasts of one high-rate
	// telemetry class.
	ThrottleMs int `yaml:"throttle_ms"`
}

// FleetMapConfig configures the MQTT position uplink.
type FleetMapConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DroneID   string `yaml:"drone_id"`
	BrokerURL string `yaml:"broker_url"`
	CertFile  string `yaml:"cert_file"`
	KeyFile   string `yaml:"key_file"`
	CAFile    string `yaml:"ca_file"`
}

// TokenGrant is one capability set in the config file.
type TokenGrant struct {
	SuperUser        bool `yaml:"super_user"`
	PilotingPitch    bool `yaml:"piloting_pitch"`
	PilotingRoll     bool `yaml:"piloting_roll"`
	PilotingThrottle bool `yaml:"piloting_throttle"`
	Camera           bool `yaml:"camera"`
	Autonomy         bool `yaml:"autonomy"`
}

// Permissions converts the grant to the session capability set.
func (g TokenGrant) Permissions() session.Permissions {
	return session.Permissions{
		IsSuperUser:         g.SuperUser,
		CanPilotingPitch:    g.PilotingPitch,
		CanPilotingRoll:     g.PilotingRoll,
		CanPilotingThrottle: g.PilotingThrottle,
		CanMoveCamera:       g.Camera,
		CanUseAutonomy:      g.Autonomy,
	}
}

// Grants converts the token table for the auth catalog, or nil when the file
// declares none.
func (c *Config) Grants() map[string]session.Permissions {
	if len(c.Tokens) == 0 {
		return nil
	}
	grants := make(map[string]session.Permissions, len(c.Tokens))
	for token, g := range c.Tokens {
		grants[token] = g.Permissions()
	}
	return grants
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Listen: ":8080"},
		Drone: DroneConfig{
			Address:       "192.168.42.1",
			PitchLimit:    75,
			RollLimit:     75,
			ThrottleLimit: 100,
		},
		Stream:        StreamConfig{Listen: "127.0.0.1:55004"},
		Telemetry:     TelemetryConfig{ThrottleMs: 1000},
		FlightPlanDir: "flightplans",
	}
}

// Load reads a config file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 – caller-controlled path
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Drone.PitchLimit <= 0 || c.Drone.RollLimit <= 0 || c.Drone.ThrottleLimit <= 0 {
		return fmt.Errorf("drone axis limits must be positive")
	}
	if c.Telemetry.ThrottleMs <= 0 {
		return fmt.Errorf("telemetry.throttle_ms must be positive")
	}
	if c.FleetMap.Enabled && c.FleetMap.BrokerURL == "" {
		return fmt.Errorf("fleet_map.broker_url required when the uplink is enabled")
	}
	return nil
}
