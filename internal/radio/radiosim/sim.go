// Package radiosim provides an in-process radio adapter that stands in for
// the BLE stack in tests and simulation builds. It models a single client: a
// test drives the client side (connect, write, read notifications) and the
// firmware side sees the same callback sequence the real stack delivers.
package radiosim

import (
	"fmt"
	"sync"

	"github.com/nexlock/keyfob-firmware/internal/radio"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// Notification is a value pushed by the firmware on a notify characteristic.
type Notification struct {
	Characteristic fobproto.Characteristic
	Data           []byte
}

// Adapter implements radio.Adapter over direct function calls.
type Adapter struct {
	mu          sync.Mutex
	handler     radio.Handler
	advertising bool
	payload     []byte
	connected   bool

	notifications chan Notification
}

func New() *Adapter {
	return &Adapter{notifications: make(chan Notification, 32)}
}

func (a *Adapter) SetHandler(h radio.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

func (a *Adapter) StartAdvertising(payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advertising = true
	a.payload = append([]byte(nil), payload...)
	return nil
}

func (a *Adapter) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advertising = false
	return nil
}

func (a *Adapter) Notify(c fobproto.Characteristic, data []byte) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("radiosim: no client connected")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case a.notifications <- Notification{Characteristic: c, Data: buf}:
	default:
		return fmt.Errorf("radiosim: notification buffer full")
	}
	return nil
}

// Disconnect drops the client from the firmware side, delivering the
// disconnect callback exactly as the stack would.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil
	}
	a.connected = false
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		h.Disconnected()
	}
	return nil
}

// Client-side test controls below.

// Connect simulates a central connecting. Fails when the firmware is not
// advertising, matching real-stack behavior.
func (a *Adapter) Connect() error {
	a.mu.Lock()
	if !a.advertising {
		a.mu.Unlock()
		return fmt.Errorf("radiosim: device is not advertising")
	}
	if a.connected {
		a.mu.Unlock()
		return fmt.Errorf("radiosim: already connected")
	}
	a.connected = true
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		h.Connected()
	}
	return nil
}

// ClientDisconnect simulates the central dropping the link.
func (a *Adapter) ClientDisconnect() error {
	return a.Disconnect()
}

// Write simulates a client GATT write.
func (a *Adapter) Write(c fobproto.Characteristic, data []byte) error {
	a.mu.Lock()
	connected := a.connected
	h := a.handler
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("radiosim: not connected")
	}
	if h != nil {
		h.Wrote(c, data)
	}
	return nil
}

// Notifications exposes the client-side notification stream.
func (a *Adapter) Notifications() <-chan Notification {
	return a.notifications
}

// Advertising reports whether the firmware is currently advertising.
func (a *Adapter) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.advertising
}

// Connected reports whether a client is connected.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// AdvertisingPayload returns the raw payload most recently advertised.
func (a *Adapter) AdvertisingPayload() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.payload...)
}
