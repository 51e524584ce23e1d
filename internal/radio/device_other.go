//go:build !linux

package radio

import "github.com/nexlock/keyfob-firmware/pkg/fobproto"

// BLEAdapter requires the Linux HCI stack. Other platforms build against
// this stub so development tooling still compiles; simulation builds use
// radiosim instead.
type BLEAdapter struct{}

func NewBLEAdapter(localName string) (*BLEAdapter, error) {
	return nil, fobproto.NewError("BLE peripheral mode is only supported on Linux", false)
}

func (a *BLEAdapter) SetHandler(h Handler)                                {}
func (a *BLEAdapter) StartAdvertising(payload []byte) error               { return fobproto.ErrRadioUnavailable }
func (a *BLEAdapter) StopAdvertising() error                              { return nil }
func (a *BLEAdapter) Notify(c fobproto.Characteristic, data []byte) error { return fobproto.ErrRadioUnavailable }
func (a *BLEAdapter) Disconnect() error                                   { return nil }
