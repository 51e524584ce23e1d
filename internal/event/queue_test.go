package event

import (
	"testing"

	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

func TestPostPreservesArrivalOrder(t *testing.T) {
	q := NewQueue()
	q.Post(Proximity())
	q.Post(RadioConnected())
	q.Post(RadioWrite(fobproto.CharControl, []byte{0x01}))

	want := []Kind{KindProximity, KindRadioConnected, KindRadioWrite}
	for i, kind := range want {
		ev := <-q.Events()
		if ev.Kind != kind {
			t.Errorf("Event %d: expected %s, got %s", i, kind, ev.Kind)
		}
	}
}

func TestPostDropsWhenFull(t *testing.T) {
	q := NewQueue()
	for i := 0; i < queueDepth; i++ {
		if !q.Post(Proximity()) {
			t.Fatalf("Post %d failed below capacity", i)
		}
	}
	if q.Post(RadioDisconnected()) {
		t.Error("Post succeeded beyond capacity")
	}
	if q.Dropped() != 1 {
		t.Errorf("Expected 1 dropped event, got %d", q.Dropped())
	}
}
