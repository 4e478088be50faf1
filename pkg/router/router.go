// Package router validates inbound client intents and turns them into drone
// commands, cache writes, and packet sends, gated by the session's
// capability grants.
//
// Failure is silent by design: an intent that is malformed, lacks permission,
// or fails a gating predicate is logged and dropped without an error packet.
// Success is confirmed through the state packets it produces.
package router

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/discofleet/skylink/pkg/auth"
	"github.com/discofleet/skylink/pkg/cache"
	"github.com/discofleet/skylink/pkg/drone"
	"github.com/discofleet/skylink/pkg/fanout"
	"github.com/discofleet/skylink/pkg/protocol"
	"github.com/discofleet/skylink/pkg/session"
)

// Config holds the router's policy knobs.
type Config struct {
	// Axis clamp bounds, applied symmetrically. Pitch and roll default to
	// 75, throttle to 100.
	PitchLimit    int
	RollLimit     int
	ThrottleLimit int
	// NoDrone skips every vehicle-affecting intent; pong and init still
	// work. Used for UI-only test deployments.
	NoDrone bool
}

func (c *Config) applyDefaults() {
	if c.PitchLimit <= 0 {
		c.PitchLimit = 75
	}
	if c.RollLimit <= 0 {
		c.RollLimit = 75
	}
	if c.ThrottleLimit <= 0 {
		c.ThrottleLimit = 100
	}
}

// Router dispatches client intents.
type Router struct {
	cfg      Config
	drone    drone.Client
	sessions *session.Registry
	cache    *cache.Cache
	catalog  *auth.Catalog
	out      *fanout.Sender

	now func() time.Time
}

// New creates a Router.
func New(cfg Config, dr drone.Client, sessions *session.Registry, c *cache.Cache, catalog *auth.Catalog, out *fanout.Sender) *Router {
	cfg.applyDefaults()
	return &Router{
		cfg:      cfg,
		drone:    dr,
		sessions: sessions,
		cache:    c,
		catalog:  catalog,
		out:      out,
		now:      time.Now,
	}
}

// Dispatch parses one raw client message and executes the intent if the
// session holds the required capability.
func (r *Router) Dispatch(id string, raw []byte) {
	in, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("router: bad packet from %s: %v", id, err)
		return
	}

	perms, ok := r.sessions.Permissions(id)
	if !ok {
		log.Printf("router: packet from unknown session %s", id)
		return
	}

	// Liveness and bootstrap work regardless of permissions and of drone
	// presence.
	switch in.Action {
	case "pong":
		r.handlePong(id, in)
		return
	case "init":
		r.handleInit(id, in)
		return
	}

	if r.cfg.NoDrone {
		return
	}

	switch in.Action {
	case "move":
		if !perms.CanPilot() {
			log.Printf("router: %s lacks piloting permission for move", id)
			return
		}
		r.handleMove(id, in)
	case "circle":
		if !perms.CanPilot() {
			log.Printf("router: %s lacks piloting permission for circle", id)
			return
		}
		r.handleCircle(id, in)
	case "camera":
		if !perms.CanMoveCamera {
			log.Printf("router: %s lacks camera permission", id)
			return
		}
		r.handleCamera(id, in)
	case "camera-center":
		if !perms.CanMoveCamera {
			log.Printf("router: %s lacks camera permission", id)
			return
		}
		r.commandErr(id, "camera-center",
			r.drone.Camera().MoveTo(r.cache.GetFloat(cache.KeyDefaultCameraTilt), r.cache.GetFloat(cache.KeyDefaultCameraPan)))
	case "rth":
		if !perms.CanUseAutonomy {
			log.Printf("router: %s lacks autonomy permission for rth", id)
			return
		}
		r.handleRTH(id, in)
	case "autonomous":
		if !perms.CanUseAutonomy {
			log.Printf("router: %s lacks autonomy permission", id)
			return
		}
		r.handleAutonomous(id, in)
	case "takeOff":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for takeOff", id)
			return
		}
		r.handleTakeOff(id)
	case "land":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for land", id)
			return
		}
		r.commandErr(id, "land", r.drone.Piloting().Land())
	case "flightPlanStart":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for flightPlanStart", id)
			return
		}
		r.handleFlightPlanStart(id, in)
	case "emergency":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for emergency", id)
			return
		}
		r.handleEmergency(id, in)
	case "geofence":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for geofence", id)
			return
		}
		r.handleGeofence(id, in)
	case "home":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for home", id)
			return
		}
		r.handleHome(id, in)
	case "test":
		if !perms.IsSuperUser {
			log.Printf("router: %s lacks super-user permission for test", id)
			return
		}
		r.handleDiagnosticTest(id)
	default:
		log.Printf("router: unknown action %q from %s", in.Action, id)
	}
}

// Teardown releases everything a disconnecting session was driving: every
// axis its grant allowed it to move is forced to zero, then the session is
// removed. The transport owns keepalive cancellation and peer teardown.
func (r *Router) Teardown(id string) {
	perms, ok := r.sessions.Permissions(id)
	if ok && !r.cfg.NoDrone {
		r.drone.Axes().Zero(perms.CanPilotingPitch, perms.CanPilotingRoll, perms.CanPilotingThrottle)
	}
	r.sessions.Delete(id)
}

// --- intent handlers ---

func (r *Router) handleMove(id string, in protocol.Inbound) {
	var move protocol.MoveData
	if err := json.Unmarshal(in.Data, &move); err != nil {
		log.Printf("router: bad move payload from %s: %v", id, err)
		return
	}

	// Each axis is applied only under its own grant; a partial grant must not
	// let a session drive the axes it was not given.
	perms, _ := r.sessions.Permissions(id)
	axes := r.drone.Axes()
	if move.Pitch != nil && perms.CanPilotingPitch {
		axes.SetPitch(clamp(*move.Pitch, r.cfg.PitchLimit))
	}
	if move.Roll != nil && perms.CanPilotingRoll {
		axes.SetRoll(clamp(*move.Roll, r.cfg.RollLimit))
	}
	if move.Throttle != nil && perms.CanPilotingThrottle {
		axes.SetThrottle(clamp(*move.Throttle, r.cfg.ThrottleLimit))
	}
}

func (r *Router) handleCircle(id string, in protocol.Inbound) {
	var circle protocol.CircleData
	if err := json.Unmarshal(in.Data, &circle); err != nil {
		log.Printf("router: bad circle payload from %s: %v", id, err)
		return
	}

	direction := strings.ToUpper(circle.Direction)
	if direction != "CW" && direction != "CCW" {
		log.Printf("router: invalid circle direction %q from %s", circle.Direction, id)
		return
	}

	r.commandErr(id, "circle", r.drone.Piloting().Circle(direction))
	log.Printf("router: circling %s", direction)
}

func (r *Router) handleCamera(id string, in protocol.Inbound) {
	var cam protocol.CameraData
	if err := json.Unmarshal(in.Data, &cam); err != nil {
		log.Printf("router: bad camera payload from %s: %v", id, err)
		return
	}

	switch cam.Type {
	case protocol.CameraAbsolute:
		r.commandErr(id, "camera moveTo", r.drone.Camera().MoveTo(cam.Tilt, cam.Pan))
	case protocol.CameraDegrees:
		r.commandErr(id, "camera move", r.drone.Camera().Move(cam.Tilt, cam.Pan))

		// Mirror the commanded gimbal speed to every authorized session,
		// issuer included, so viewers track camera motion live.
		r.out.ToAuthorized(protocol.Packet{Action: "camera", Data: map[string]any{
			"currentSpeed": map[string]any{
				"tilt": cam.Tilt,
				"pan":  cam.Pan,
			},
		}})
	default:
		log.Printf("router: unknown camera move type %q from %s", cam.Type, id)
	}
}

func (r *Router) handleRTH(id string, in protocol.Inbound) {
	var start bool
	if err := json.Unmarshal(in.Data, &start); err != nil {
		log.Printf("router: bad rth payload from %s: %v", id, err)
		return
	}

	// Idempotent by design: the drone tolerates redundant start/stop, so no
	// local dedup. The advisory alert goes to the issuer only.
	if start {
		r.commandErr(id, "rth", r.drone.Piloting().ReturnToHome())
		log.Printf("router: returning to home")
		r.out.ToSession(id, protocol.Alert(protocol.AlertInfo, "Returning to home"))
	} else {
		r.commandErr(id, "rth stop", r.drone.Piloting().StopReturnToHome())
		log.Printf("router: return to home cancelled")
		r.out.ToSession(id, protocol.Alert(protocol.AlertWarning, "Returning to home stopped"))
	}
}

func (r *Router) handleAutonomous(id string, in protocol.Inbound) {
	var auto protocol.AutonomousData
	if err := json.Unmarshal(in.Data, &auto); err != nil {
		log.Printf("router: bad autonomous payload from %s: %v", id, err)
		return
	}

	r.cache.Set(cache.KeyAutonomyEnabled, auto.IsEnabled)
	if !auto.IsEnabled {
		// Disabling autonomy pauses any playing flight plan; re-enabling is
		// explicit via flightPlanStart.
		r.commandErr(id, "autonomous pause", r.drone.Mavlink().Pause())
	}
	r.out.ToAll(protocol.State(map[string]any{"isAutonomous": auto.IsEnabled}))
}

func (r *Router) handleTakeOff(id string) {
	log.Printf("router: got take off command from %s", id)

	if !r.cache.CanTakeOff() {
		log.Printf("router: take off refused, pre-flight gate not satisfied")
		return
	}

	r.commandErr(id, "takeOff", r.drone.Piloting().TakeOff())
	log.Printf("router: taking off")
}

func (r *Router) handleFlightPlanStart(id string, in protocol.Inbound) {
	var name string
	if err := json.Unmarshal(in.Data, &name); err != nil {
		log.Printf("router: bad flightPlanStart payload from %s: %v", id, err)
		return
	}

	if !r.cache.CanTakeOff() && !in.Force {
		log.Printf("router: flight plan %q refused, pre-flight gate not satisfied", name)
		r.out.ToSession(id, protocol.Alert(protocol.AlertDanger, "Flight plan failed"))
		return
	}

	r.commandErr(id, "flightPlanStart", r.drone.Mavlink().Start(name+".mavlink"))
	log.Printf("router: flight plan %q started", name)
	r.out.ToSession(id, protocol.Alert(protocol.AlertSuccess, "Flight plan started"))
}

func (r *Router) handleEmergency(id string, in protocol.Inbound) {
	var kind string
	if err := json.Unmarshal(in.Data, &kind); err != nil {
		log.Printf("router: bad emergency payload from %s: %v", id, err)
		return
	}

	if kind == "landingFlightPlan" {
		r.commandErr(id, "emergency landing plan", r.drone.Mavlink().Start("land.mavlink"))
		log.Printf("router: started landing flight plan")
		return
	}

	r.commandErr(id, "emergency", r.drone.Piloting().Emergency())
	log.Printf("router: emergency cut-out issued")
}

func (r *Router) handleGeofence(id string, in protocol.Inbound) {
	var fence protocol.GeofenceData
	if err := json.Unmarshal(in.Data, &fence); err != nil {
		log.Printf("router: bad geofence payload from %s: %v", id, err)
		return
	}

	r.commandErr(id, "geofence maxDistance", r.drone.PilotingSettings().SetMaxDistance(fence.MaxDistance))
	r.commandErr(id, "geofence maxAltitude", r.drone.PilotingSettings().SetMaxAltitude(fence.MaxAltitude))

	r.out.ToAuthorized(protocol.Packet{Action: "geofence", Data: map[string]any{
		"maxDistance": fence.MaxDistance,
		"maxAltitude": fence.MaxAltitude,
	}})
}

func (r *Router) handleHome(id string, in protocol.Inbound) {
	var home protocol.HomeData
	if err := json.Unmarshal(in.Data, &home); err != nil {
		log.Printf("router: bad home payload from %s: %v", id, err)
		return
	}

	r.commandErr(id, "home", r.drone.GPSSettings().SetHomeLocation(home.Latitude, home.Longitude, home.Altitude))

	r.out.ToAuthorized(protocol.Packet{Action: "home", Data: map[string]any{
		"latitude":  home.Latitude,
		"longitude": home.Longitude,
		"altitude":  home.Altitude,
	}})
}

// handleDiagnosticTest replays the home/controller-GPS setup sequence against
// the drone's last reported position.
func (r *Router) handleDiagnosticTest(id string) {
	lat := r.cache.GetFloat(cache.KeyLatitude)
	lon := r.cache.GetFloat(cache.KeyLongitude)

	gps := r.drone.GPSSettings()
	r.commandErr(id, "test resetHome", gps.ResetHome())
	r.commandErr(id, "test setHomeLocation", gps.SetHomeLocation(lat, lon, 50))
	r.commandErr(id, "test sendControllerGPS", gps.SendControllerGPS(lat, lon, 50, 2, 2))
	r.commandErr(id, "test setHomeType", gps.SetHomeType(1))
}

func (r *Router) handlePong(id string, in protocol.Inbound) {
	var pong protocol.PongData
	if err := json.Unmarshal(in.Data, &pong); err != nil {
		log.Printf("router: bad pong payload from %s: %v", id, err)
		return
	}

	now := r.now().UnixMilli()
	r.out.ToSession(id, protocol.Latency(now-pong.Time))

	takeOffAt := r.cache.GetInt(cache.KeyTakeOffAt)
	var flyingTime int64
	if takeOffAt >= 0 {
		flyingTime = now - takeOffAt
	}
	r.out.ToSession(id, protocol.State(map[string]any{"flyingTime": flyingTime}))
}

func (r *Router) handleInit(id string, in protocol.Inbound) {
	var init protocol.InitData
	if err := json.Unmarshal(in.Data, &init); err != nil {
		log.Printf("router: bad init payload from %s: %v", id, err)
		return
	}

	// Unknown tokens get silence: no rejection packet, nothing to probe.
	if !r.catalog.IsKnown(init.Token) {
		log.Printf("router: init with unknown token from %s", id)
		return
	}

	perms := r.catalog.Resolve(init.Token)
	r.sessions.SetPermissions(id, perms)
	r.sessions.SetAuthorized(id, true)

	r.out.ToSession(id, protocol.Packet{Action: "permission", Data: perms})
	r.out.ToSession(id, protocol.Alert(protocol.AlertSuccess, "You got authorized by token"))
}

// commandErr logs a failed drone command submission. Command failures never
// reach the client; the next telemetry packet tells the real story.
func (r *Router) commandErr(id, what string, err error) {
	if err != nil {
		log.Printf("router: %s from %s: %v", what, id, err)
	}
}

func clamp(v, limit int) int {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
