package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateVersion is the current version of the credential file format.
const StateVersion = 1

// Credentials is the identity material a registered device holds.
type Credentials struct {
	// DeviceID is the device-chosen identifier confirmed at registration.
	DeviceID uint64 `json:"device_id"`

	// UUID is the gateway-issued device UUID.
	UUID uuid.UUID `json:"uuid"`

	// Token is the gateway-issued authentication token.
	Token string `json:"token"`
}

// credentialFile is the on-disk envelope.
type credentialFile struct {
	Version     int          `json:"version"`
	SavedAt     time.Time    `json:"saved_at"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// Store manages persistence of device credentials to a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a credential store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save persists the credentials to disk. The write is atomic: the file
// is written to a temporary name and renamed into place.
func (s *Store) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	file := credentialFile{
		Version:     StateVersion,
		SavedAt:     time.Now(),
		Credentials: creds,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Load reads the credentials from disk.
// Returns nil, nil if the file doesn't exist or holds no credentials.
func (s *Store) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("corrupt credential file: %w", err)
	}
	if file.Version != StateVersion {
		return nil, fmt.Errorf("unsupported credential file version %d", file.Version)
	}
	return file.Credentials, nil
}

// Clear removes the credential file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
