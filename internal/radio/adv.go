package radio

import (
	"fmt"

	"github.com/google/uuid"
)

// Advertising data structure types from the Bluetooth Core Specification
// Supplement, Part A.
const (
	adTypeFlags               = 0x01
	adTypeComplete128BitUUIDs = 0x07
	adTypeTxPower             = 0x0A
)

// Flags octet: LE General Discoverable Mode | BR/EDR Not Supported.
const advFlags = 0x02 | 0x04

// AdvConfig describes the advertising payload. The service UUID and optional
// Tx-power field are provisioning inputs.
type AdvConfig struct {
	ServiceUUID string
	// TxPower, when non-nil, appends a Tx-power AD structure with the given
	// dBm value so clients can estimate path loss.
	TxPower *int8
}

// BuildAdvertisingPayload assembles the raw AD structures: flags, the
// complete 128-bit service UUID, and the optional Tx-power field.
func BuildAdvertisingPayload(cfg AdvConfig) ([]byte, error) {
	u, err := uuid.Parse(cfg.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", cfg.ServiceUUID, err)
	}

	payload := []byte{2, adTypeFlags, advFlags}

	// Service UUIDs are transmitted little-endian; uuid.UUID is big-endian.
	raw := [16]byte(u)
	uuidAD := make([]byte, 0, 18)
	uuidAD = append(uuidAD, 17, adTypeComplete128BitUUIDs)
	for i := len(raw) - 1; i >= 0; i-- {
		uuidAD = append(uuidAD, raw[i])
	}
	payload = append(payload, uuidAD...)

	if cfg.TxPower != nil {
		payload = append(payload, 2, adTypeTxPower, byte(*cfg.TxPower))
	}

	if len(payload) > 31 {
		return nil, fmt.Errorf("advertising payload is %d bytes, limit 31", len(payload))
	}
	return payload, nil
}
