// Package radio owns the advertising lifecycle and GATT characteristic I/O
// for the unlock service. It translates raw radio-stack callbacks into the
// events consumed by the state machine and validates write lengths locally;
// it performs no authentication logic.
package radio

import (
	"fmt"

	"github.com/nexlock/keyfob-firmware/internal/event"
	"github.com/nexlock/keyfob-firmware/internal/log"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// Manager drives an Adapter on behalf of the state machine. All methods are
// called from the main loop; the Handler callbacks arrive from the radio
// stack and only post to the bounded queue.
type Manager struct {
	adapter Adapter
	queue   *event.Queue
	payload []byte
}

// NewManager builds the advertising payload from cfg and installs itself as
// the adapter's handler.
func NewManager(adapter Adapter, queue *event.Queue, cfg AdvConfig) (*Manager, error) {
	payload, err := BuildAdvertisingPayload(cfg)
	if err != nil {
		return nil, err
	}
	m := &Manager{adapter: adapter, queue: queue, payload: payload}
	adapter.SetHandler(m)
	return m, nil
}

// StartAdvertising begins connectable advertising of the unlock service.
func (m *Manager) StartAdvertising() error {
	if err := m.adapter.StartAdvertising(m.payload); err != nil {
		return fmt.Errorf("%w: %s", fobproto.ErrRadioUnavailable, err)
	}
	return nil
}

// StopAdvertising halts advertising.
func (m *Manager) StopAdvertising() {
	if err := m.adapter.StopAdvertising(); err != nil {
		log.Warning("Failed to stop advertising: %s", err)
	}
}

// Disconnect drops the active connection.
func (m *Manager) Disconnect() {
	if err := m.adapter.Disconnect(); err != nil {
		log.Warning("Failed to disconnect: %s", err)
	}
}

// NotifyChallenge pushes a nonce on the Challenge characteristic.
func (m *Manager) NotifyChallenge(nonce [fobproto.ChallengeLength]byte) error {
	return m.adapter.Notify(fobproto.CharChallenge, nonce[:])
}

// NotifyStatus pushes a status code on the Status characteristic. Status
// delivery is best effort: a failed notification is logged, not escalated,
// because every status-bearing transition already resolves fail-safe.
func (m *Manager) NotifyStatus(code fobproto.Status) {
	if err := m.adapter.Notify(fobproto.CharStatus, []byte{byte(code)}); err != nil {
		log.Warning("Failed to notify status %s: %s", code, err)
	}
}

// Connected implements Handler.
func (m *Manager) Connected() {
	if !m.queue.Post(event.RadioConnected()) {
		log.Error("Dropping connect event: queue full")
	}
}

// Disconnected implements Handler.
func (m *Manager) Disconnected() {
	if !m.queue.Post(event.RadioDisconnected()) {
		log.Error("Dropping disconnect event: queue full")
	}
}

// Wrote implements Handler. Writes whose length does not match the
// characteristic's fixed size, or that target a non-writable
// characteristic, are rejected here with Status=ERROR and never reach the
// state machine.
func (m *Manager) Wrote(c fobproto.Characteristic, data []byte) {
	switch c {
	case fobproto.CharResponse, fobproto.CharControl:
	default:
		log.Warning("Rejecting write to non-writable characteristic %s", c)
		m.NotifyStatus(fobproto.StatusError)
		return
	}
	if len(data) != c.Size() {
		log.Warning("Rejecting %d-byte write to %s (expected %d)", len(data), c, c.Size())
		m.NotifyStatus(fobproto.StatusError)
		return
	}
	// The stack may reuse the callback buffer; copy before queuing.
	buf := make([]byte, len(data))
	copy(buf, data)
	if !m.queue.Post(event.RadioWrite(c, buf)) {
		log.Error("Dropping write to %s: queue full", c)
	}
}
