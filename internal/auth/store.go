package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// On real hardware the master secret lives in protected flash written by the
// provisioning console. Development-host builds persist it in the system
// keyring instead, under the same refuse-to-start-unprovisioned contract.

const (
	keyringServiceName = "com.nexlock.keyfob"
	keyringSecretKey   = "sharedSecret"
	keyringPolicyKey   = "policyOverrides"
)

// Store persists the provisioning state: the master secret and any policy
// overrides installed by the provisioning console.
type Store struct {
	kr keyring.Keyring
}

// OpenStore opens the system keyring. fileDir is the fallback directory for
// the encrypted-file backend on hosts without a native keychain.
func OpenStore(fileDir string) (*Store, error) {
	kr, err := keyring.Open(keyring.Config{
		ServiceName:      keyringServiceName,
		FileDir:          fileDir,
		FilePasswordFunc: keyring.FixedStringPrompt("keyfob secret store"),
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{kr: kr}, nil
}

// SaveSecret installs the master secret. Only the provisioning console calls
// this; production firmware has no write path to the secret.
func (s *Store) SaveSecret(secret []byte) error {
	if len(secret) != MasterSecretLength {
		return fmt.Errorf("master secret must be %d bytes, got %d", MasterSecretLength, len(secret))
	}
	return s.kr.Set(keyring.Item{
		Key:   keyringSecretKey,
		Data:  secret,
		Label: "keyfob shared secret",
	})
}

// LoadSecret retrieves the master secret, returning
// fobproto.ErrNotProvisioned when none has been installed. The caller owns
// the returned slice and must zeroize it after key derivation.
func (s *Store) LoadSecret() ([]byte, error) {
	item, err := s.kr.Get(keyringSecretKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fobproto.ErrNotProvisioned
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	if len(item.Data) != MasterSecretLength {
		return nil, fmt.Errorf("%w: stored secret has invalid length %d", fobproto.ErrNotProvisioned, len(item.Data))
	}
	return item.Data, nil
}

// SavePolicyOverride records a policy field override as installed by the
// provisioning console. Values are stored as-is; validation happens at the
// console and again when fobd applies them.
func (s *Store) SavePolicyOverride(field, value string) error {
	overrides, err := s.LoadPolicyOverrides()
	if err != nil {
		return err
	}
	overrides[field] = value
	var buf strings.Builder
	fields := make([]string, 0, len(overrides))
	for f := range overrides {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(&buf, "%s=%s\n", f, overrides[f])
	}
	return s.kr.Set(keyring.Item{
		Key:   keyringPolicyKey,
		Data:  []byte(buf.String()),
		Label: "keyfob policy overrides",
	})
}

// LoadPolicyOverrides returns the installed policy overrides, empty when none
// have been set.
func (s *Store) LoadPolicyOverrides() (map[string]string, error) {
	overrides := make(map[string]string)
	item, err := s.kr.Get(keyringPolicyKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return overrides, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	for _, line := range strings.Split(string(item.Data), "\n") {
		if line == "" {
			continue
		}
		field, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed policy override %q", line)
		}
		overrides[field] = value
	}
	return overrides, nil
}
