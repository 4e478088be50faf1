package disco

import (
	"encoding/binary"
	"math"

	"github.com/discofleet/skylink/pkg/drone"
)

// ARCommand project ids.
const (
	projectCommon   = 0
	projectARDrone3 = 1
)

// Class ids used by the relay.
const (
	classCommonMavlink       = 11
	classCommonMavlinkState  = 12
	classCommonCalibState    = 14
	classCommonState         = 5
	classCommonFlightPlanSt  = 17
	classPiloting            = 0
	classCamera              = 1
	classPilotingSettings    = 2
	classPilotingState       = 4
	classMediaRecordState    = 8
	classMediaStreaming      = 21
	classGPSSettings         = 23
	classGPSSettingsState    = 24
	classCameraState         = 25
	classGPSState            = 31
)

// decodeEvent maps one inbound ARCommand to a typed event. Unknown commands
// return nil; the drone emits far more than the relay consumes.
func decodeEvent(cmd command) drone.Event {
	switch {
	case cmd.Project == projectCommon && cmd.Class == classCommonState:
		return decodeCommonState(cmd)
	case cmd.Project == projectCommon && cmd.Class == classCommonCalibState:
		return decodeCalibrationState(cmd)
	case cmd.Project == projectCommon && cmd.Class == classCommonMavlinkState:
		return decodeMavlinkState(cmd)
	case cmd.Project == projectCommon && cmd.Class == classCommonFlightPlanSt:
		return decodeFlightPlanState(cmd)
	case cmd.Project == projectARDrone3 && cmd.Class == classPilotingState:
		return decodePilotingState(cmd)
	case cmd.Project == projectARDrone3 && cmd.Class == classGPSSettingsState:
		return decodeGPSSettingsState(cmd)
	case cmd.Project == projectARDrone3 && cmd.Class == classGPSState:
		return decodeGPSState(cmd)
	case cmd.Project == projectARDrone3 && cmd.Class == classCameraState:
		return decodeCameraState(cmd)
	case cmd.Project == projectARDrone3 && cmd.Class == classMediaRecordState:
		return decodeMediaRecordState(cmd)
	}
	return nil
}

func decodeCommonState(cmd command) drone.Event {
	switch cmd.ID {
	case 1: // BatteryStateChanged
		if len(cmd.Args) < 1 {
			return nil
		}
		return drone.BatteryChanged{Percent: int(cmd.Args[0])}
	case 8: // SensorsStatesListChanged
		if len(cmd.Args) < 5 {
			return nil
		}
		sensor, ok := sensorByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.SensorStateChanged{Sensor: sensor, OK: cmd.Args[4] == 1}
	}
	return nil
}

var sensorByID = map[uint32]drone.Sensor{
	0: drone.SensorIMU,
	1: drone.SensorBarometer,
	2: drone.SensorUltrasonic,
	3: drone.SensorGPS,
	4: drone.SensorMagnetometer,
	5: drone.SensorVerticalCamera,
	6: drone.SensorMotor,
}

func decodeCalibrationState(cmd command) drone.Event {
	switch cmd.ID {
	case 0: // MagnetoCalibrationStateChanged, last arg is calibrationRequired
		if len(cmd.Args) < 4 {
			return nil
		}
		return drone.MagnetoCalibrationRequired{Required: cmd.Args[3] == 1}
	case 3: // PitotCalibrationStateChanged
		if len(cmd.Args) < 1 {
			return nil
		}
		return drone.PitotCalibrationRequired{Required: cmd.Args[0] == 1}
	}
	return nil
}

var mavlinkStateByID = map[uint32]string{
	0: "playing",
	1: "stopped",
	2: "paused",
}

func decodeMavlinkState(cmd command) drone.Event {
	switch cmd.ID {
	case 0: // MavlinkFilePlayingStateChanged
		if len(cmd.Args) < 4 {
			return nil
		}
		state, ok := mavlinkStateByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.MavlinkPlayingStateChanged{State: state}
	case 2: // MissionItemExecuted
		if len(cmd.Args) < 4 {
			return nil
		}
		return drone.MissionItemExecuted{Index: int(binary.LittleEndian.Uint32(cmd.Args[0:4]))}
	}
	return nil
}

func decodeFlightPlanState(cmd command) drone.Event {
	if cmd.ID == 0 { // AvailabilityStateChanged
		if len(cmd.Args) < 1 {
			return nil
		}
		return drone.FlightPlanAvailabilityChanged{Available: cmd.Args[0] == 1}
	}
	return nil
}

var flyingStateByID = map[uint32]drone.FlyingState{
	0: drone.FlyingStateLanded,
	1: drone.FlyingStateTakingOff,
	2: drone.FlyingStateHovering,
	3: drone.FlyingStateFlying,
	4: drone.FlyingStateLanding,
	5: drone.FlyingStateEmergency,
}

var alertStateByID = map[uint32]string{
	0: "none",
	1: "user",
	2: "cut_out",
	3: "critical_battery",
	4: "low_battery",
	5: "too_much_angle",
}

var navigateHomeStateByID = map[uint32]string{
	0: "available",
	1: "inProgress",
	2: "unavailable",
	3: "pending",
}

var moveToStatusByID = map[uint32]string{
	0: "RUNNING",
	1: "DONE",
	2: "CANCELED",
	3: "ERROR",
}

func decodePilotingState(cmd command) drone.Event {
	switch cmd.ID {
	case 1: // FlyingStateChanged
		if len(cmd.Args) < 4 {
			return nil
		}
		state, ok := flyingStateByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.FlyingStateChanged{State: state}
	case 2: // AlertStateChanged
		if len(cmd.Args) < 4 {
			return nil
		}
		state, ok := alertStateByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.AlertStateChanged{State: state}
	case 3: // NavigateHomeStateChanged
		if len(cmd.Args) < 4 {
			return nil
		}
		state, ok := navigateHomeStateByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.NavigateHomeStateChanged{State: state}
	case 4: // PositionChanged
		if len(cmd.Args) < 24 {
			return nil
		}
		return drone.PositionChanged{
			Latitude:  f64(cmd.Args[0:8]),
			Longitude: f64(cmd.Args[8:16]),
			Altitude:  f64(cmd.Args[16:24]),
		}
	case 5: // SpeedChanged
		if len(cmd.Args) < 12 {
			return nil
		}
		return drone.SpeedChanged{
			SpeedX: f32(cmd.Args[0:4]),
			SpeedY: f32(cmd.Args[4:8]),
			SpeedZ: f32(cmd.Args[8:12]),
		}
	case 6: // AttitudeChanged
		if len(cmd.Args) < 12 {
			return nil
		}
		return drone.AttitudeChanged{
			Roll:  f32(cmd.Args[0:4]),
			Pitch: f32(cmd.Args[4:8]),
			Yaw:   f32(cmd.Args[8:12]),
		}
	case 8: // AltitudeChanged
		if len(cmd.Args) < 8 {
			return nil
		}
		return drone.AltitudeChanged{Altitude: f64(cmd.Args[0:8])}
	case 12: // moveToChanged, status is the last u32 after lat/lon/alt/mode/heading
		if len(cmd.Args) < 36 {
			return nil
		}
		status, ok := moveToStatusByID[binary.LittleEndian.Uint32(cmd.Args[32:36])]
		if !ok {
			return nil
		}
		return drone.MoveToChanged{Status: status}
	}
	return nil
}

var homeTypeByID = map[uint32]string{
	0: "TAKEOFF",
	1: "PILOT",
	2: "FIRST_FIX",
}

func decodeGPSSettingsState(cmd command) drone.Event {
	switch cmd.ID {
	case 0: // HomeChanged
		if len(cmd.Args) < 24 {
			return nil
		}
		return drone.HomeChanged{
			Latitude:  f64(cmd.Args[0:8]),
			Longitude: f64(cmd.Args[8:16]),
			Altitude:  f64(cmd.Args[16:24]),
		}
	case 2: // GPSFixStateChanged
		if len(cmd.Args) < 1 {
			return nil
		}
		return drone.GPSFixChanged{Fixed: cmd.Args[0] == 1}
	case 4: // HomeTypeChanged
		if len(cmd.Args) < 4 {
			return nil
		}
		typ, ok := homeTypeByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.HomeTypeChanged{Type: typ}
	}
	return nil
}

func decodeGPSState(cmd command) drone.Event {
	switch cmd.ID {
	case 0: // NumberOfSatelliteChanged
		if len(cmd.Args) < 1 {
			return nil
		}
		return drone.SatelliteCountChanged{Count: int(cmd.Args[0])}
	case 2: // HomeTypeChosenChanged
		if len(cmd.Args) < 4 {
			return nil
		}
		typ, ok := homeTypeByID[binary.LittleEndian.Uint32(cmd.Args[0:4])]
		if !ok {
			return nil
		}
		return drone.HomeTypeChosen{Type: typ}
	}
	return nil
}

func decodeCameraState(cmd command) drone.Event {
	switch cmd.ID {
	case 0: // Orientation
		if len(cmd.Args) < 2 {
			return nil
		}
		return drone.CameraOrientation{
			Tilt: float64(int8(cmd.Args[0])),
			Pan:  float64(int8(cmd.Args[1])),
		}
	case 1: // defaultCameraOrientation
		if len(cmd.Args) < 2 {
			return nil
		}
		return drone.CameraDefaultsChanged{
			Tilt: float64(int8(cmd.Args[0])),
			Pan:  float64(int8(cmd.Args[1])),
		}
	case 4: // VelocityRange, f32 max tilt and pan speeds in deg/s
		if len(cmd.Args) < 8 {
			return nil
		}
		return drone.CameraMaxSpeedChanged{
			Tilt: f32(cmd.Args[0:4]),
			Pan:  f32(cmd.Args[4:8]),
		}
	}
	return nil
}

func decodeMediaRecordState(cmd command) drone.Event {
	if cmd.ID == 3 { // VideoStateChangedV2, state 1 = started
		if len(cmd.Args) < 4 {
			return nil
		}
		return drone.VideoRecordStateChanged{
			Recording: binary.LittleEndian.Uint32(cmd.Args[0:4]) == 1,
		}
	}
	return nil
}

func f32(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

func f64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
