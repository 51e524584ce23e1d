package radio

import (
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// Handler receives raw radio-stack callbacks. The Manager is the only
// Handler in production; tests may install their own. Callbacks may arrive
// from the radio stack's own goroutines and must not block.
type Handler interface {
	Connected()
	Disconnected()
	// Wrote delivers a client write to a writable characteristic. The data
	// slice is only valid for the duration of the call.
	Wrote(c fobproto.Characteristic, data []byte)
}

// Adapter abstracts a radio backend capable of peripheral-role advertising
// and GATT I/O on the unlock service. Backends: the go-ble Linux stack and
// the in-process simulator under radiosim.
type Adapter interface {
	// SetHandler installs the callback sink. Must be called before
	// StartAdvertising.
	SetHandler(h Handler)
	// StartAdvertising begins connectable advertising with the given raw
	// payload. Backends whose stack formats advertising data internally may
	// ignore the payload bytes but must advertise the same service.
	StartAdvertising(payload []byte) error
	// StopAdvertising halts advertising. Idempotent.
	StopAdvertising() error
	// Notify pushes a characteristic value to the subscribed client.
	Notify(c fobproto.Characteristic, data []byte) error
	// Disconnect drops the active connection, if any. Idempotent.
	Disconnect() error
}
