package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

func testSecret() []byte {
	secret := make([]byte, MasterSecretLength)
	for i := range secret {
		secret[i] = byte(i)
	}
	return secret
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	key, err := NewSoftwareKey(testSecret(), "FOB-TEST-0001")
	if err != nil {
		t.Fatalf("Failed to derive key: %s", err)
	}
	return NewEngine(key)
}

func TestVerifyRoundTrip(t *testing.T) {
	engine := testEngine(t)
	nonce, err := engine.IssueNonce()
	if err != nil {
		t.Fatalf("Failed to issue nonce: %s", err)
	}
	response, err := engine.ExpectedResponse(nonce)
	if err != nil {
		t.Fatalf("Failed to compute response: %s", err)
	}
	if !engine.Verify(nonce, response[:]) {
		t.Error("Valid response rejected")
	}
}

func TestVerifyRejectsWrongResponse(t *testing.T) {
	engine := testEngine(t)
	nonce, err := engine.IssueNonce()
	if err != nil {
		t.Fatalf("Failed to issue nonce: %s", err)
	}
	response, err := engine.ExpectedResponse(nonce)
	if err != nil {
		t.Fatalf("Failed to compute response: %s", err)
	}
	for bit := 0; bit < 8; bit++ {
		tampered := response
		tampered[0] ^= 1 << bit
		if engine.Verify(nonce, tampered[:]) {
			t.Errorf("Accepted response with bit %d flipped", bit)
		}
	}
}

func TestVerifyRejectsWrongLength(t *testing.T) {
	engine := testEngine(t)
	nonce, err := engine.IssueNonce()
	if err != nil {
		t.Fatalf("Failed to issue nonce: %s", err)
	}
	response, err := engine.ExpectedResponse(nonce)
	if err != nil {
		t.Fatalf("Failed to compute response: %s", err)
	}
	if engine.Verify(nonce, response[:15]) {
		t.Error("Accepted truncated response")
	}
	if engine.Verify(nonce, append(response[:], 0)) {
		t.Error("Accepted over-length response")
	}
	if engine.Verify(nonce, nil) {
		t.Error("Accepted nil response")
	}
}

func TestResponseBoundToNonce(t *testing.T) {
	engine := testEngine(t)
	n1, _ := engine.IssueNonce()
	n2, _ := engine.IssueNonce()
	if n1 == n2 {
		t.Fatal("Consecutive nonces are identical")
	}
	r1, err := engine.ExpectedResponse(n1)
	if err != nil {
		t.Fatalf("Failed to compute response: %s", err)
	}
	// A response captured for an earlier nonce never validates a later one.
	if engine.Verify(n2, r1[:]) {
		t.Error("Stale response accepted against a fresh nonce")
	}
}

func TestIssueNonceEntropyFailure(t *testing.T) {
	key, err := NewSoftwareKey(testSecret(), "FOB-TEST-0001")
	if err != nil {
		t.Fatalf("Failed to derive key: %s", err)
	}
	engine := NewEngineWithSource(key, &failingReader{})
	if _, err := engine.IssueNonce(); !errors.Is(err, fobproto.ErrEntropyFailure) {
		t.Errorf("Expected ErrEntropyFailure, got %v", err)
	}
}

type failingReader struct{}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("rng peripheral fault")
}

type failingKey struct{}

func (k *failingKey) ComputeKeyedHash(nonce Nonce) (Response, error) {
	return Response{}, errors.New("element unreachable")
}

func TestVerifyFailsClosedOnKeyError(t *testing.T) {
	engine := NewEngine(&failingKey{})
	var nonce Nonce
	var response [ResponseLength]byte
	if engine.Verify(nonce, response[:]) {
		t.Error("Verify must fail when the key provider errors")
	}
}

func TestSoftwareKeyDerivationIsDeterministicPerDevice(t *testing.T) {
	k1, err := NewSoftwareKey(testSecret(), "FOB-A")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := NewSoftwareKey(testSecret(), "FOB-A")
	if err != nil {
		t.Fatal(err)
	}
	k3, err := NewSoftwareKey(testSecret(), "FOB-B")
	if err != nil {
		t.Fatal(err)
	}
	var nonce Nonce
	r1, _ := k1.ComputeKeyedHash(nonce)
	r2, _ := k2.ComputeKeyedHash(nonce)
	r3, _ := k3.ComputeKeyedHash(nonce)
	if r1 != r2 {
		t.Error("Same secret and device must derive the same key")
	}
	if r1 == r3 {
		t.Error("Different devices must derive different keys")
	}
}

func TestSoftwareKeyRejectsBadSecretLength(t *testing.T) {
	if _, err := NewSoftwareKey(make([]byte, 16), "FOB-A"); err == nil {
		t.Error("Accepted 16-byte master secret")
	}
}

type fakeElement struct {
	key    []byte
	awake  bool
	idles  int
	failOp bool
}

func (e *fakeElement) Wake() error { e.awake = true; return nil }
func (e *fakeElement) Idle() error { e.awake = false; e.idles++; return nil }

func (e *fakeElement) ComputeHMAC(slot uint8, message []byte) ([]byte, error) {
	if !e.awake {
		return nil, errors.New("element asleep")
	}
	if e.failOp {
		return nil, errors.New("command failed")
	}
	mac := hmac.New(sha256.New, e.key)
	mac.Write(message)
	return mac.Sum(nil), nil
}

func TestSecureElementTruncatesDigest(t *testing.T) {
	element := &fakeElement{key: []byte("element key")}
	provider := NewSecureElement(element, 2)

	var nonce Nonce
	copy(nonce[:], bytes.Repeat([]byte{0xAB}, NonceLength))
	got, err := provider.ComputeKeyedHash(nonce)
	if err != nil {
		t.Fatalf("ComputeKeyedHash failed: %s", err)
	}

	mac := hmac.New(sha256.New, element.key)
	mac.Write(nonce[:])
	want := mac.Sum(nil)[:ResponseLength]
	if !bytes.Equal(got[:], want) {
		t.Error("Secure element digest does not match truncated HMAC")
	}
	if e := element.idles; e != 1 {
		t.Errorf("Element idled %d times, expected 1", e)
	}
}

func TestSecureElementIdlesOnError(t *testing.T) {
	element := &fakeElement{key: []byte("element key"), failOp: true}
	provider := NewSecureElement(element, 0)
	if _, err := provider.ComputeKeyedHash(Nonce{}); err == nil {
		t.Fatal("Expected error from failing element")
	}
	if element.awake {
		t.Error("Element left awake after error")
	}
}

func TestZeroize(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zeroize(b)
	if !bytes.Equal(b, make([]byte, 4)) {
		t.Error("Zeroize left data behind")
	}
}
