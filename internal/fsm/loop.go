package fsm

import (
	"context"
	"time"

	"github.com/nexlock/keyfob-firmware/internal/event"
	"github.com/nexlock/keyfob-firmware/internal/log"
)

// Run executes the cooperative event loop until ctx is canceled. Events are
// consumed strictly in arrival order; timer expiries and wake decisions are
// derived on the tick and fed through the same transition function. On
// cancellation the machine is forced to Sleep so the radio is stopped and
// secrets are cleared before returning.
func (m *Machine) Run(ctx context.Context) error {
	log.Info("Starting firmware event loop (tick %s)", m.tick)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case ev := <-m.queue.Events():
			m.HandleEvent(ev)
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick polls the wake subsystem and the timer set, converting anything due
// into events. Exposed so deterministic tests can drive the machine with a
// manual clock.
func (m *Machine) Tick() {
	if m.wake != nil && m.wake.PollWake() {
		m.HandleEvent(event.Proximity())
	}
	for _, expiry := range m.timers.Poll() {
		m.HandleEvent(event.TimerExpired(expiry))
	}
}

func (m *Machine) shutdown() {
	log.Info("Stopping firmware event loop")
	if m.state != Sleep {
		m.radio.Disconnect()
		m.toSleep()
	}
	if dropped := m.queue.Dropped(); dropped > 0 {
		log.Warning("Event queue dropped %d events during runtime", dropped)
	}
}
