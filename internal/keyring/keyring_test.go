package keyring

import (
	"errors"
	"strings"
	"testing"

	"github.com/99designs/keyring"
)

func newTestStore() (*Store, *keyring.ArrayKeyring) {
	ring := keyring.NewArrayKeyring(nil)
	return NewStore(ring), ring
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore()

	_, err := s.Get()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if s.Has() {
		t.Error("expected Has() to be false")
	}
}

func TestStore_SetGet(t *testing.T) {
	s, _ := newTestStore()

	if err := s.Set("alice", "s3cret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	creds, err := s.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if creds.Username != "alice" || creds.Secret != "s3cret" {
		t.Errorf("unexpected credentials %+v", creds)
	}

	if err := s.Set("bob", "other"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	creds, _ = s.Get()
	if creds.Username != "bob" || creds.Secret != "other" {
		t.Errorf("expected replaced credentials, got %+v", creds)
	}
}

func TestStore_PartialIsNotFound(t *testing.T) {
	s, ring := newTestStore()
	if err := ring.Set(keyring.Item{Key: usernameKey, Data: []byte("alice")}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound with only a username stored, got %v", err)
	}
}

func TestStore_SetRejectsEmpty(t *testing.T) {
	s, _ := newTestStore()

	for _, tc := range [][2]string{{"", "pw"}, {"user", ""}} {
		if err := s.Set(tc[0], tc[1]); err == nil {
			t.Errorf("Set(%q, %q) expected error", tc[0], tc[1])
		}
	}
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore()

	if err := s.Clear(); err != nil {
		t.Errorf("Clear on empty keyring failed: %v", err)
	}

	if err := s.Set("alice", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := s.Get(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Clear, got %v", err)
	}
}

func TestPromptUsername(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"alice\n", "alice", false},
		{"  bob  \n", "bob", false},
		{"carol", "carol", false},
		{"\n", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := PromptUsername(strings.NewReader(tt.input))
		if (err != nil) != tt.wantErr {
			t.Errorf("PromptUsername(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("PromptUsername(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
