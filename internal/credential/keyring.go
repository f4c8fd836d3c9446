package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "inbox"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// TokenKey returns the keyring key holding the API token for profile.
func TokenKey(profile string) string {
	if profile == "" {
		profile = "default"
	}
	return "token-" + profile
}

// Keyring reads and writes secrets. *System is the production
// implementation; tests substitute an in-memory keyring.
type Keyring interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// System stores credentials in the OS keyring, falling back to an
// encrypted file under dir.
type System struct {
	dir string
}

// NewSystem returns a System keyring whose file backend lives in dir.
func NewSystem(dir string) *System {
	return &System{dir: dir}
}

// openKeyring returns a configured keyring instance.
func (s *System) openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(s.dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("inbox-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key.
func (s *System) Get(key string) (string, error) {
	ring, err := s.openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *System) Set(key string, value string) error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "inbox API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key. Deleting a missing key is not an error.
func (s *System) Delete(key string) error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Memory is an in-process Keyring backed by keyring's ArrayKeyring.
type Memory struct {
	ring *keyring.ArrayKeyring
}

// NewMemory returns an empty in-memory keyring.
func NewMemory() *Memory {
	return &Memory{ring: keyring.NewArrayKeyring(nil)}
}

func (m *Memory) Get(key string) (string, error) {
	item, err := m.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (m *Memory) Set(key, value string) error {
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value)})
}

func (m *Memory) Delete(key string) error {
	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
