// Package fleetmap mirrors the drone's position onto the shared fleet map
// over MQTT. Publishing is fire-and-forget: the map is a nicety, losing an
// update must never stall telemetry fan-out.
package fleetmap

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/discofleet/skylink/pkg/protocol"
	"github.com/discofleet/skylink/pkg/security"
)

// Config holds the fleet-map uplink configuration.
type Config struct {
	// DroneID identifies this drone on the map (e.g. "disco-001").
	DroneID string
	// BrokerURL is the MQTT broker address (e.g. "tls://map.example.org:8883").
	BrokerURL string
	// CertFile, KeyFile, CAFile are paths for mTLS authentication. All three
	// empty means plain TCP.
	CertFile string
	KeyFile  string
	CAFile   string
}

// Publisher pushes position updates to the fleet-map broker.
type Publisher struct {
	cfg    Config
	client mqtt.Client
}

// New creates a Publisher. Nothing connects until Connect.
func New(cfg Config) *Publisher {
	return &Publisher{cfg: cfg}
}

// Connect establishes the MQTT connection. When CertFile, KeyFile and CAFile
// are set in Config, mutual TLS 1.3 authentication is used.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.DroneID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if p.cfg.CertFile != "" && p.cfg.KeyFile != "" && p.cfg.CAFile != "" {
		tlsCfg, err := security.ClientTLSConfig(p.cfg.CertFile, p.cfg.KeyFile, p.cfg.CAFile)
		if err != nil {
			return fmt.Errorf("fleetmap tls config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("fleetmap connect: %w", token.Error())
	}
	return nil
}

// ConnectWithClient is used in tests to inject a pre-configured mqtt.Client.
func (p *Publisher) ConnectWithClient(c mqtt.Client) {
	p.client = c
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) onConnect(mqtt.Client) {
	log.Printf("fleetmap: connected to %s as %s", p.cfg.BrokerURL, p.cfg.DroneID)
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("fleetmap: connection lost: %v", err)
}

// PublishLocation mirrors the drone position.
func (p *Publisher) PublishLocation(latitude, longitude float64) {
	p.publish(protocol.LocationTopic(p.cfg.DroneID), map[string]float64{
		"latitude":  latitude,
		"longitude": longitude,
	})
}

// PublishAltitude mirrors the altitude in meters.
func (p *Publisher) PublishAltitude(altitude float64) {
	p.publish(protocol.AltitudeTopic(p.cfg.DroneID), map[string]float64{
		"altitude": altitude,
	})
}

// PublishSpeed mirrors the ground speed in m/s.
func (p *Publisher) PublishSpeed(speed float64) {
	p.publish(protocol.SpeedTopic(p.cfg.DroneID), map[string]float64{
		"speed": speed,
	})
}

// PublishYaw mirrors the heading in radians.
func (p *Publisher) PublishYaw(yaw float64) {
	p.publish(protocol.YawTopic(p.cfg.DroneID), map[string]float64{
		"yaw": yaw,
	})
}

func (p *Publisher) publish(topic string, payload any) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("fleetmap: marshal %s: %v", topic, err)
		return
	}

	// QoS 0: stale positions are worthless, never queue them.
	token := p.client.Publish(topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		log.Printf("fleetmap: publish %s: %v", topic, token.Error())
	}
}
