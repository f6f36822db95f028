package credentials

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	// Provider is how the session was obtained: "password" or an identity
	// provider name such as "apple" or "google".
	Provider string `json:"provider"`
}

// IsExpired checks if the access token is expired
func (c *Credentials) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsValid checks if credentials are valid
func (c *Credentials) IsValid() bool {
	return c.AccessToken != "" && !c.IsExpired()
}

// Store reads and writes the credentials file. It implements
// client.TokenSource.
type Store struct {
	path string

	mu     sync.Mutex
	cached *Credentials
	loaded bool
}

// NewStore returns a store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the credentials file path.
func (s *Store) Path() string { return s.path }

// Load loads credentials from disk. It returns nil, nil when nobody is
// logged in.
func (s *Store) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Credentials, error) {
	if s.loaded {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil, nil // Credentials don't exist yet
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, clierrors.DecodeError(err).WithSuggestion("Remove " + s.path + " and log in again.")
	}

	s.cached = &creds
	s.loaded = true
	return s.cached, nil
}

// Save saves credentials to disk
func (s *Store) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}

	copied := *creds
	s.cached = &copied
	s.loaded = true
	return nil
}

// Delete deletes credentials from disk. Deleting absent credentials is not
// an error.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	s.loaded = true
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Token returns the access token. It returns "" when nobody is logged in
// and a session-expired error when the token has expired.
func (s *Store) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return "", err
	}
	if creds == nil || creds.AccessToken == "" {
		return "", nil
	}
	if creds.IsExpired() {
		return "", clierrors.SessionExpiredError()
	}
	return creds.AccessToken, nil
}
