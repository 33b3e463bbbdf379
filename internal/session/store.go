package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "atelier-cli"
	keyringKey     = "session"
)

// Store persists the current Credentials under a single well-known key.
// It is the sole source of truth for session state: the session manager, the
// request transport, and the route guard all read it fresh at each decision
// point instead of holding their own copies.
//
// Load treats a missing record and an unparsable record identically: both
// report absent. Corrupt session data is indistinguishable from "never
// logged in" by design.
type Store interface {
	Save(creds Credentials) error
	Load() (*Credentials, bool)
	Clear() error
}

// KeyringStore persists credentials in the OS keychain/credential manager.
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a keychain-backed store
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Save serializes and writes the credentials, overwriting any previous value
func (s *KeyringStore) Save(creds Credentials) error {
	creds.Timestamp = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := keyring.Set(keyringService, keyringKey, string(data)); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Load reads the stored credentials, reporting absent when there is no
// record or the record fails to parse
func (s *KeyringStore) Load() (*Credentials, bool) {
	data, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		return nil, false
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, false
	}
	return &creds, true
}

// Clear removes the stored credentials
func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(keyringService, keyringKey); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already cleared
		}
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// FileStore persists credentials as a JSON file. It exists for headless
// environments (CI, containers) where no OS keychain is available, and for
// the console server which shares session state with the CLI.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store at the given path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath returns the default location of the session file,
// ~/.config/atelier/session.json
func DefaultSessionPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "atelier", "session.json"), nil
}

// Save serializes and writes the credentials, overwriting any previous value
func (s *FileStore) Save(creds Credentials) error {
	creds.Timestamp = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads the stored credentials, reporting absent when the file is
// missing or fails to parse
func (s *FileStore) Load() (*Credentials, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, false
	}
	return &creds, true
}

// Clear removes the session file
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil // Already cleared
		}
		return fmt.Errorf("failed to clear session file: %w", err)
	}
	return nil
}

// DefaultStore returns the keychain-backed store, unless ATELIER_SESSION_FILE
// points at a file path (set in CI and used by tests).
func DefaultStore() Store {
	if path := os.Getenv("ATELIER_SESSION_FILE"); path != "" {
		return NewFileStore(path)
	}
	return NewKeyringStore()
}
