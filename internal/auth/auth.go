// Package auth implements the challenge-response engine: nonce generation
// from the true-entropy source and constant-time verification of keyed-hash
// responses. The engine holds no session state; the state machine owns the
// failure counter, the lockout decision, and nonce consumption.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

const (
	// NonceLength is the size of the challenge notified to the client.
	NonceLength = fobproto.ChallengeLength
	// ResponseLength is the size of the truncated keyed hash the client
	// writes back.
	ResponseLength = fobproto.ResponseLength
)

// Nonce is a single-use challenge value. A nonce is consumed by the first
// verification attempt made against it, successful or not.
type Nonce [NonceLength]byte

// Response is a truncated keyed hash of a Nonce.
type Response [ResponseLength]byte

// Engine issues nonces and verifies responses against a KeyProvider.
type Engine struct {
	entropy io.Reader
	key     KeyProvider
}

// NewEngine returns an Engine drawing nonces from crypto/rand.
func NewEngine(key KeyProvider) *Engine {
	return NewEngineWithSource(key, rand.Reader)
}

// NewEngineWithSource returns an Engine drawing nonces from the given
// entropy source. Embedded targets pass their TRNG peripheral here; tests
// pass deterministic or failing sources.
func NewEngineWithSource(key KeyProvider, entropy io.Reader) *Engine {
	return &Engine{entropy: entropy, key: key}
}

// IssueNonce draws a fresh 16-byte nonce from the entropy source. An entropy
// failure is terminal: the caller must halt advertising and refuse
// authentication rather than fall back to a deterministic source.
func (e *Engine) IssueNonce() (Nonce, error) {
	var n Nonce
	if _, err := io.ReadFull(e.entropy, n[:]); err != nil {
		return Nonce{}, fmt.Errorf("%w: %s", fobproto.ErrEntropyFailure, err)
	}
	return n, nil
}

// Verify computes the keyed hash of nonce under the provisioned secret,
// truncates it to 16 bytes, and compares it against response in constant
// time. Any key-provider error verifies as false: the fail-safe default is
// to not authenticate.
func (e *Engine) Verify(nonce Nonce, response []byte) bool {
	if len(response) != ResponseLength {
		return false
	}
	expected, err := e.key.ComputeKeyedHash(nonce)
	if err != nil {
		return false
	}
	defer Zeroize(expected[:])
	return hmac.Equal(expected[:], response)
}

// ExpectedResponse returns the valid response for nonce. Used by tests and
// by the provisioning console's self-check; never called on the unlock path.
func (e *Engine) ExpectedResponse(nonce Nonce) (Response, error) {
	return e.key.ComputeKeyedHash(nonce)
}

// Zeroize overwrites b with zeros. Secret material is cleared on every exit
// path that releases it.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
