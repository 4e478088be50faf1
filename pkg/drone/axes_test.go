package drone

import (
	"testing"
)

func TestAxesFlagDerivation(t *testing.T) {
	var a Axes

	if got := a.Snapshot().Flag; got != 0 {
		t.Errorf("idle flag = %d, want 0", got)
	}

	a.SetPitch(40)
	if got := a.Snapshot().Flag; got != 1 {
		t.Errorf("flag with pitch=40 = %d, want 1", got)
	}

	a.SetPitch(0)
	a.SetRoll(0)
	a.SetThrottle(0)
	if got := a.Snapshot().Flag; got != 0 {
		t.Errorf("flag with all axes zero = %d, want 0", got)
	}
}

func TestAxesZeroSelective(t *testing.T) {
	var a Axes
	a.SetPitch(30)
	a.SetRoll(20)
	a.SetThrottle(10)

	// Release only the axes a disconnecting pitch-only pilot could drive.
	a.Zero(true, false, false)

	s := a.Snapshot()
	if s.Pitch != 0 {
		t.Errorf("pitch = %d, want 0", s.Pitch)
	}
	if s.Roll != 20 || s.Throttle != 10 {
		t.Errorf("roll/throttle = %d/%d, want untouched 20/10", s.Roll, s.Throttle)
	}
	if s.Flag != 1 {
		t.Errorf("flag = %d, want 1 while roll still held", s.Flag)
	}
}

func TestAxesZeroAll(t *testing.T) {
	var a Axes
	a.SetRoll(-50)
	a.ZeroAll()

	s := a.Snapshot()
	if s.Pitch != 0 || s.Roll != 0 || s.Throttle != 0 || s.Flag != 0 {
		t.Errorf("snapshot after ZeroAll = %+v", s)
	}
}
