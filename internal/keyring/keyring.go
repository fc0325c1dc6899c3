// Package keyring stores the portal credentials in the OS keyring.
package keyring

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	usernameKey = "ldap_username"
	passwordKey = "ldap_password"
)

// ErrNotFound is returned when no credentials have been stored yet
var ErrNotFound = errors.New("credentials not found in keyring")

// Credentials are the portal login credentials
type Credentials struct {
	Username string
	Secret   string
}

// Store reads and writes Credentials in a keyring
type Store struct {
	ring keyring.Keyring
}

// Open opens the OS keyring for service
func Open(service string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,      // macOS Keychain
			keyring.SecretServiceBackend, // Linux Secret Service (GNOME Keyring, KWallet)
			keyring.KWalletBackend,
			keyring.WinCredBackend, // Windows Credential Manager
			keyring.PassBackend,    // Pass (password-store.org)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get returns the stored credentials, or ErrNotFound if either half is missing
func (s *Store) Get() (Credentials, error) {
	username, err := s.get(usernameKey)
	if err != nil {
		return Credentials{}, err
	}
	secret, err := s.get(passwordKey)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: username, Secret: secret}, nil
}

func (s *Store) get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s from keyring: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores username and secret, replacing any previous values
func (s *Store) Set(username, secret string) error {
	if username == "" || secret == "" {
		return fmt.Errorf("username and password must not be empty")
	}

	items := []keyring.Item{
		{Key: usernameKey, Data: []byte(username), Label: "Captive portal username"},
		{Key: passwordKey, Data: []byte(secret), Label: "Captive portal password"},
	}
	for _, item := range items {
		if err := s.ring.Set(item); err != nil {
			return fmt.Errorf("failed to store %s in keyring: %w", item.Key, err)
		}
	}
	return nil
}

// Clear removes the stored credentials. Clearing when nothing is stored
// is not an error.
func (s *Store) Clear() error {
	for _, key := range []string{usernameKey, passwordKey} {
		err := s.ring.Remove(key)
		if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("failed to remove %s from keyring: %w", key, err)
		}
	}
	return nil
}

// Has reports whether complete credentials are stored
func (s *Store) Has() bool {
	_, err := s.Get()
	return err == nil
}
