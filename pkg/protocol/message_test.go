package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeMove(t *testing.T) {
	in, err := Decode([]byte(`{"action":"move","data":{"pitch":30,"throttle":0}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Action != "move" {
		t.Errorf("Action = %q, want move", in.Action)
	}

	var move MoveData
	if err := json.Unmarshal(in.Data, &move); err != nil {
		t.Fatalf("unmarshal move data: %v", err)
	}
	if move.Pitch == nil || *move.Pitch != 30 {
		t.Errorf("Pitch = %v, want 30", move.Pitch)
	}
	if move.Throttle == nil || *move.Throttle != 0 {
		t.Errorf("Throttle = %v, want explicit 0", move.Throttle)
	}
	if move.Roll != nil {
		t.Errorf("Roll = %v, want absent", move.Roll)
	}
}

func TestDecodeForceFlag(t *testing.T) {
	in, err := Decode([]byte(`{"action":"flightPlanStart","data":"survey","force":true}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !in.Force {
		t.Error("Force flag lost in decode")
	}
}

func TestAlertPacket(t *testing.T) {
	data, err := Marshal(Alert(AlertWarning, "drone disconnected"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded struct {
		Action string `json:"action"`
		Data   struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Action != "alert" || decoded.Data.Level != AlertWarning {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestStatePacketOmitsForce(t *testing.T) {
	data, err := Marshal(State(map[string]any{"isDroneConnected": false}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["force"]; ok {
		t.Error("force should be omitted when false")
	}
}

func TestTopics(t *testing.T) {
	if got, want := LocationTopic("disco-01"), "skylink/drone/disco-01/location"; got != want {
		t.Errorf("LocationTopic = %q, want %q", got, want)
	}
	if got, want := YawTopic("disco-01"), "skylink/drone/disco-01/yaw"; got != want {
		t.Errorf("YawTopic = %q, want %q", got, want)
	}
}
