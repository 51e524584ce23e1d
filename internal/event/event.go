// Package event defines the firmware's event vocabulary and the bounded
// queue feeding the main loop. Interrupt-context producers (proximity edge,
// radio callbacks) post pre-formed events without blocking; the state
// machine is the queue's only consumer and processes events strictly in
// arrival order.
package event

import (
	"github.com/nexlock/keyfob-firmware/internal/clock"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// Kind tags an Event variant.
type Kind int

const (
	KindProximity Kind = iota
	KindTimerExpired
	KindRadioConnected
	KindRadioDisconnected
	KindRadioWrite
	KindActuatorResult
)

func (k Kind) String() string {
	switch k {
	case KindProximity:
		return "Proximity"
	case KindTimerExpired:
		return "TimerExpired"
	case KindRadioConnected:
		return "RadioConnected"
	case KindRadioDisconnected:
		return "RadioDisconnected"
	case KindRadioWrite:
		return "RadioWrite"
	case KindActuatorResult:
		return "ActuatorResult"
	}
	return "Unknown"
}

// Event is the tagged variant consumed by the state machine. Only the fields
// matching Kind are meaningful. Events are values; they are never retained
// after processing.
type Event struct {
	Kind Kind

	// TimerExpired
	Timer    clock.TimerID
	TimerGen clock.Gen

	// RadioWrite
	Characteristic fobproto.Characteristic
	Data           []byte

	// ActuatorResult
	OK bool
}

func Proximity() Event {
	return Event{Kind: KindProximity}
}

func TimerExpired(e clock.Expiry) Event {
	return Event{Kind: KindTimerExpired, Timer: e.ID, TimerGen: e.Gen}
}

func RadioConnected() Event {
	return Event{Kind: KindRadioConnected}
}

func RadioDisconnected() Event {
	return Event{Kind: KindRadioDisconnected}
}

func RadioWrite(c fobproto.Characteristic, data []byte) Event {
	return Event{Kind: KindRadioWrite, Characteristic: c, Data: data}
}

func ActuatorResult(ok bool) Event {
	return Event{Kind: KindActuatorResult, OK: ok}
}
