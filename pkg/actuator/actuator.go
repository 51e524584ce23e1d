// Package actuator defines the door-actuator collaborator interface. The
// state machine decides whether to unlock; this package's implementations
// decide nothing and only report whether the physical action completed.
package actuator

import (
	"context"
	"time"

	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// Actuator performs the single physical unlock action. A returned error is
// terminal for the session: the firmware reports Status=ERROR and never
// retries automatically.
type Actuator interface {
	RequestUnlock(ctx context.Context) error
}

// PulseDriver models a fixed-duration unlock pulse for simulation builds:
// the call completes after the pulse duration unless the context expires
// first.
type PulseDriver struct {
	PulseDuration time.Duration
}

func (d *PulseDriver) RequestUnlock(ctx context.Context) error {
	select {
	case <-time.After(d.PulseDuration):
		return nil
	case <-ctx.Done():
		return fobproto.ErrActuatorFault
	}
}
