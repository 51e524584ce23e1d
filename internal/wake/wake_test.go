package wake

import (
	"testing"
	"time"

	"github.com/nexlock/keyfob-firmware/internal/clock"
)

func TestImmediatePassThrough(t *testing.T) {
	c := clock.NewManual()
	d := NewDetector(c, Policy{})
	d.Sense()
	if !d.PollWake() {
		t.Error("Expected wake after a single edge with confirmation disabled")
	}
	if d.PollWake() {
		t.Error("Wake must be consumed by the first poll")
	}
}

func TestDebounceFloorCollapsesBounce(t *testing.T) {
	c := clock.NewManual()
	d := NewDetector(c, Policy{RequireConfirmation: true, ConfirmWindowMillis: 500})
	d.Sense()
	c.Advance(10 * time.Millisecond)
	d.Sense() // bounce, within the 50ms floor
	if d.PollWake() {
		t.Error("Contact bounce must not count as confirmation")
	}
}

func TestConfirmationWithinWindow(t *testing.T) {
	c := clock.NewManual()
	d := NewDetector(c, Policy{RequireConfirmation: true, ConfirmWindowMillis: 500})
	d.Sense()
	if d.PollWake() {
		t.Fatal("Single edge must not wake when confirmation is required")
	}
	c.Advance(100 * time.Millisecond)
	d.Sense()
	if !d.PollWake() {
		t.Error("Expected wake after confirming edge within window")
	}
}

func TestConfirmationWindowExpires(t *testing.T) {
	c := clock.NewManual()
	d := NewDetector(c, Policy{RequireConfirmation: true, ConfirmWindowMillis: 500})
	d.Sense()
	c.Advance(600 * time.Millisecond)
	d.Sense() // too late; starts a new attempt
	if d.PollWake() {
		t.Fatal("Late edge must not confirm an expired attempt")
	}
	c.Advance(100 * time.Millisecond)
	d.Sense()
	if !d.PollWake() {
		t.Error("Expected wake from the restarted attempt")
	}
}

func TestSuspendIgnoresEdges(t *testing.T) {
	c := clock.NewManual()
	d := NewDetector(c, Policy{})
	d.Suspend()
	d.Sense()
	if d.PollWake() {
		t.Error("Suspended detector must ignore edges")
	}
	d.Resume()
	c.Advance(time.Second)
	d.Sense()
	if !d.PollWake() {
		t.Error("Resumed detector must sense again")
	}
}

func TestSuspendClearsPendingState(t *testing.T) {
	c := clock.NewManual()
	d := NewDetector(c, Policy{RequireConfirmation: true, ConfirmWindowMillis: 500})
	d.Sense()
	d.Suspend()
	d.Resume()
	c.Advance(100 * time.Millisecond)
	d.Sense()
	if d.PollWake() {
		t.Error("Edge before suspend must not confirm an edge after resume")
	}
}
