package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// MasterSecretLength is the provisioned shared-secret size.
	MasterSecretLength = 32

	labelUnlockKey = "keyfob unlock key v1"
)

// KeyProvider computes the keyed hash of a nonce under the device secret.
// The two implementations differ in where the key lives: SoftwareKey holds a
// derived key in protected RAM, SecureElement delegates to an external
// element and never sees raw key material. The engine is agnostic to which
// is wired in.
type KeyProvider interface {
	ComputeKeyedHash(nonce Nonce) (Response, error)
}

// SoftwareKey is the on-chip KeyProvider. It derives a per-device unlock key
// from the provisioned master secret via HKDF-SHA256 and computes
// HMAC-SHA256 tags truncated to 16 bytes. Scoped key copies are zeroized on
// every exit path.
type SoftwareKey struct {
	unlockKey [MasterSecretLength]byte
}

// NewSoftwareKey derives the unlock key from the master secret, bound to the
// device identity. The master secret itself is not retained; callers should
// zeroize their copy after this returns.
func NewSoftwareKey(masterSecret []byte, deviceID string) (*SoftwareKey, error) {
	if len(masterSecret) != MasterSecretLength {
		return nil, fmt.Errorf("master secret must be %d bytes, got %d", MasterSecretLength, len(masterSecret))
	}
	salt := sha256.Sum256([]byte(deviceID))
	kdf := hkdf.New(sha256.New, masterSecret, salt[:], []byte(labelUnlockKey))
	k := &SoftwareKey{}
	if _, err := io.ReadFull(kdf, k.unlockKey[:]); err != nil {
		return nil, fmt.Errorf("deriving unlock key: %w", err)
	}
	return k, nil
}

// ComputeKeyedHash returns HMAC-SHA256(unlockKey, nonce) truncated to 16
// bytes. The HMAC context's scoped key copy is cleared before returning.
func (k *SoftwareKey) ComputeKeyedHash(nonce Nonce) (Response, error) {
	scoped := make([]byte, len(k.unlockKey))
	copy(scoped, k.unlockKey[:])
	defer Zeroize(scoped)

	mac := hmac.New(sha256.New, scoped)
	mac.Write(nonce[:])
	sum := mac.Sum(nil)
	defer Zeroize(sum)

	var r Response
	copy(r[:], sum[:ResponseLength])
	return r, nil
}

// Destroy clears the derived key. The SoftwareKey must not be used after.
func (k *SoftwareKey) Destroy() {
	Zeroize(k.unlockKey[:])
}
