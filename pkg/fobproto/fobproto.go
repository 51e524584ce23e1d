// Package fobproto defines the over-the-air contract between the keyfob
// firmware and a credential-bearing client: the advertised service UUID, the
// GATT characteristic set, and the single-byte status codes notified on the
// Status characteristic. Client applications should import this package
// rather than duplicating the constants.
package fobproto

import "fmt"

// UnlockServiceUUID identifies the access-control GATT service in the
// advertising payload and the attribute table.
const UnlockServiceUUID = "12345678-1234-5678-1234-56789abcdef0"

// Characteristic UUIDs under UnlockServiceUUID. The last group encodes the
// characteristic index so the set reads as a block in sniffer output.
const (
	ChallengeUUID = "12345678-1234-5678-1234-56789abcdee1"
	ResponseUUID  = "12345678-1234-5678-1234-56789abcdee2"
	ControlUUID   = "12345678-1234-5678-1234-56789abcdee3"
	StatusUUID    = "12345678-1234-5678-1234-56789abcdee4"
)

// Characteristic selects one of the service's four characteristics in write
// events and notification requests.
type Characteristic int

const (
	CharChallenge Characteristic = iota // notify, 16 bytes, server → client nonce
	CharResponse                        // write, 16 bytes, client → server keyed-hash
	CharControl                         // write, 1 byte, client → server command
	CharStatus                          // notify, 1 byte, server → client status code
)

func (c Characteristic) String() string {
	switch c {
	case CharChallenge:
		return "Challenge"
	case CharResponse:
		return "Response"
	case CharControl:
		return "Control"
	case CharStatus:
		return "Status"
	}
	return fmt.Sprintf("Characteristic(%d)", int(c))
}

// Fixed payload sizes. Writes of any other length are rejected at the radio
// layer before they reach the state machine.
const (
	ChallengeLength = 16
	ResponseLength  = 16
	ControlLength   = 1
	StatusLength    = 1
)

// Size returns the fixed payload length for c, or 0 if c is unknown.
func (c Characteristic) Size() int {
	switch c {
	case CharChallenge:
		return ChallengeLength
	case CharResponse:
		return ResponseLength
	case CharControl:
		return ControlLength
	case CharStatus:
		return StatusLength
	}
	return 0
}

// Control opcodes.
const (
	ControlUnlock byte = 0x01
)

// Status codes notified on the Status characteristic.
type Status byte

const (
	StatusAuthOK   Status = 0x01 // challenge response verified
	StatusAuthFail Status = 0x02 // challenge response rejected
	StatusUnlocked Status = 0x03 // actuator fired
	StatusDenied   Status = 0x04 // unlock request refused (no valid auth window)
	StatusError    Status = 0x05 // malformed request or internal failure
)

func (s Status) String() string {
	switch s {
	case StatusAuthOK:
		return "AUTH_OK"
	case StatusAuthFail:
		return "AUTH_FAIL"
	case StatusUnlocked:
		return "UNLOCKED"
	case StatusDenied:
		return "DENIED"
	case StatusError:
		return "ERROR"
	}
	return fmt.Sprintf("Status(0x%02x)", byte(s))
}
