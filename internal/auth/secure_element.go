package auth

import (
	"fmt"
)

// ElementHAL is the low-level interface to an external secure element. The
// element driver itself (I2C framing, CRC, retries) lives outside this core;
// the core only requires wake/idle power control and a keyed-hash command
// against a key slot.
type ElementHAL interface {
	// Wake brings the element out of its low-power state.
	Wake() error
	// Idle returns the element to its low-power state.
	Idle() error
	// ComputeHMAC runs the element's HMAC command against the key stored in
	// slot. The raw key never leaves the element.
	ComputeHMAC(slot uint8, message []byte) ([]byte, error)
}

// SecureElement is the KeyProvider backed by an external secure element. The
// firmware never holds key material; compromise of device RAM does not
// disclose the secret.
type SecureElement struct {
	hal  ElementHAL
	slot uint8
}

func NewSecureElement(hal ElementHAL, slot uint8) *SecureElement {
	return &SecureElement{hal: hal, slot: slot}
}

// ComputeKeyedHash wakes the element, runs the HMAC command, truncates the
// digest to 16 bytes, and idles the element again on all paths.
func (s *SecureElement) ComputeKeyedHash(nonce Nonce) (Response, error) {
	if err := s.hal.Wake(); err != nil {
		return Response{}, fmt.Errorf("waking secure element: %w", err)
	}
	defer s.hal.Idle()

	digest, err := s.hal.ComputeHMAC(s.slot, nonce[:])
	if err != nil {
		return Response{}, fmt.Errorf("secure element hmac: %w", err)
	}
	defer Zeroize(digest)
	if len(digest) < ResponseLength {
		return Response{}, fmt.Errorf("secure element returned %d-byte digest, need %d", len(digest), ResponseLength)
	}
	var r Response
	copy(r[:], digest[:ResponseLength])
	return r, nil
}
