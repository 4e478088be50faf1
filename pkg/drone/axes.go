package drone

import (
	"sync"
)

// Axes holds the shared piloting axes. Whatever authorized session issued the
// last move intent wins; the moving flag is derived from whether any axis is
// non-zero. The piloting loop reads a snapshot each tick.
type Axes struct {
	mu       sync.Mutex
	pitch    int
	roll     int
	throttle int
}

// AxesSnapshot is one consistent read of the axes.
type AxesSnapshot struct {
	Pitch    int
	Roll     int
	Throttle int
	// Flag is 1 while any axis is non-zero, 0 otherwise.
	Flag int
}

// SetPitch sets the pitch axis.
func (a *Axes) SetPitch(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pitch = v
}

// SetRoll sets the roll axis.
func (a *Axes) SetRoll(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roll = v
}

// SetThrottle sets the throttle axis.
func (a *Axes) SetThrottle(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.throttle = v
}

// ZeroAll releases every axis.
func (a *Axes) ZeroAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pitch, a.roll, a.throttle = 0, 0, 0
}

// Zero releases the selected axes. Used on session teardown so a vanished
// client cannot leave the drone with a stuck input.
func (a *Axes) Zero(pitch, roll, throttle bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pitch {
		a.pitch = 0
	}
	if roll {
		a.roll = 0
	}
	if throttle {
		a.throttle = 0
	}
}

// Snapshot returns a consistent read of all axes plus the derived moving flag.
func (a *Axes) Snapshot() AxesSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := AxesSnapshot{Pitch: a.pitch, Roll: a.roll, Throttle: a.throttle}
	if s.Pitch != 0 || s.Roll != 0 || s.Throttle != 0 {
		s.Flag = 1
	}
	return s
}
