package clock

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TimerID names one of the firmware's software countdown timers. Each ID has
// at most one armed instance at a time; re-arming replaces the previous
// instance.
type TimerID int

const (
	TimerAdvertising TimerID = iota // advertising window, armed on entry to Advertising
	TimerIdle                       // connection idle supervision, armed on connect and on writes
	TimerUnlockPulse                // failsafe bound on the Unlocked state
)

func (id TimerID) String() string {
	switch id {
	case TimerAdvertising:
		return "adv"
	case TimerIdle:
		return "idle"
	case TimerUnlockPulse:
		return "pulse"
	}
	return fmt.Sprintf("timer(%d)", int(id))
}

// Gen is a per-ID arm generation. Every Arm increments the generation, so an
// expiry event carrying a stale generation identifies a timer that was
// disarmed or re-armed after the expiry was computed and must be discarded.
type Gen uint32

// Expiry reports that a timer's deadline passed.
type Expiry struct {
	ID  TimerID
	Gen Gen
}

type armedTimer struct {
	deadline Millis
	gen      Gen
}

// TimerSet manages the firmware's countdown timers against a single Clock.
// It performs no scheduling of its own; the main loop calls Poll on its tick
// and converts expiries into events.
type TimerSet struct {
	clock Clock

	mu    sync.Mutex
	armed map[TimerID]armedTimer
	gens  map[TimerID]Gen
}

func NewTimerSet(c Clock) *TimerSet {
	return &TimerSet{
		clock: c,
		armed: make(map[TimerID]armedTimer),
		gens:  make(map[TimerID]Gen),
	}
}

// Arm starts (or restarts) the timer with the given duration and returns the
// new generation.
func (ts *TimerSet) Arm(id TimerID, d time.Duration) Gen {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.gens[id]++
	gen := ts.gens[id]
	ts.armed[id] = armedTimer{
		deadline: ts.clock.Now() + Millis(d/time.Millisecond),
		gen:      gen,
	}
	return gen
}

// Disarm cancels the timer if armed. The generation is not reused, so any
// in-flight expiry for the previous arm is invalidated.
func (ts *TimerSet) Disarm(id TimerID) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.armed, id)
}

// DisarmAll cancels every armed timer. Called on every transition into
// Sleep so stale timers can never fire into a later state.
func (ts *TimerSet) DisarmAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for id := range ts.armed {
		delete(ts.armed, id)
	}
}

// Armed reports whether the timer is currently armed and, if so, its
// generation.
func (ts *TimerSet) Armed(id TimerID) (Gen, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.armed[id]
	return t.gen, ok
}

// Poll removes and returns every timer whose deadline has passed, ordered by
// deadline. Expired timers are disarmed before being reported, so a single
// expiry is delivered exactly once.
func (ts *TimerSet) Poll() []Expiry {
	now := ts.clock.Now()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	type expiredTimer struct {
		e        Expiry
		deadline Millis
	}
	var expired []expiredTimer
	for id, t := range ts.armed {
		if t.deadline <= now {
			expired = append(expired, expiredTimer{Expiry{ID: id, Gen: t.gen}, t.deadline})
			delete(ts.armed, id)
		}
	}
	// Map iteration order is random; deliver in deadline order so timeout
	// cascades resolve deterministically.
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].deadline != expired[j].deadline {
			return expired[i].deadline < expired[j].deadline
		}
		return expired[i].e.ID < expired[j].e.ID
	})
	out := make([]Expiry, len(expired))
	for i, t := range expired {
		out[i] = t.e
	}
	return out
}
