// Package wake debounces the proximity sensor's raw wake signal into a
// single wake decision. The sensor's ranging algorithm is a black box; all
// this package sees is edge notifications from the sensor's interrupt line.
package wake

import (
	"sync"

	"github.com/nexlock/keyfob-firmware/internal/clock"
)

// Edges closer together than this are treated as contact bounce on the
// sensor's interrupt line and collapsed into one.
const debounceFloorMillis = 50

// Policy configures the confirmation behavior.
type Policy struct {
	// RequireConfirmation demands a second corroborating edge before a wake
	// is forwarded: slower, fewer false wakes.
	RequireConfirmation bool
	// ConfirmWindowMillis bounds how long after the first edge the
	// confirming edge may arrive.
	ConfirmWindowMillis int64
}

// Detector turns raw sensor edges into at most one wake decision per poll.
// Sense is safe to call from interrupt context: it takes a mutex held only
// for a few field writes and never blocks on the main loop.
type Detector struct {
	clock  clock.Clock
	policy Policy

	mu        sync.Mutex
	suspended bool
	pending   bool         // first edge seen, awaiting confirmation
	pendingAt clock.Millis // time of the first edge
	lastEdge  clock.Millis
	hasEdge   bool
	fire      bool // confirmed wake awaiting PollWake
}

func NewDetector(c clock.Clock, policy Policy) *Detector {
	return &Detector{clock: c, policy: policy}
}

// Sense records a raw wake edge from the sensor. Minimal non-blocking work
// only; the decision logic runs in PollWake on the main loop.
func (d *Detector) Sense() {
	now := d.clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.suspended {
		return
	}
	if d.hasEdge && now-d.lastEdge < debounceFloorMillis {
		return
	}
	d.lastEdge = now
	d.hasEdge = true

	if !d.policy.RequireConfirmation {
		d.fire = true
		return
	}
	if d.pending {
		if now-d.pendingAt <= clock.Millis(d.policy.ConfirmWindowMillis) {
			d.pending = false
			d.fire = true
			return
		}
		// Confirmation window elapsed; this edge starts a new attempt.
	}
	d.pending = true
	d.pendingAt = now
}

// PollWake reports whether a confirmed wake occurred since the last poll,
// consuming it. Called from the main loop.
func (d *Detector) PollWake() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.policy.RequireConfirmation && d.pending {
		if d.clock.Now()-d.pendingAt > clock.Millis(d.policy.ConfirmWindowMillis) {
			d.pending = false
		}
	}
	fired := d.fire
	d.fire = false
	return fired
}

// Suspend down-rates sensing while the device is awake: edges are ignored so
// the sensor cannot self-interfere with the active radio session.
func (d *Detector) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = true
	d.pending = false
	d.fire = false
}

// Resume restores full sensing duty cycle. Called when the state machine
// re-enters Sleep.
func (d *Detector) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = false
}
