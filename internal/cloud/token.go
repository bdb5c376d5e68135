// Package cloud implements the optional telemetry and profile sync client
// for the vastctl cloud service: token storage, installation identity,
// privacy-filtered snapshots, and a small authenticated HTTP client.
// Nothing in this package is required for local operation, and sync
// failures never fail the command that triggered them.
package cloud

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const (
	keyringService = "vastctl"
	tokenKey       = "cloud_access_token"

	// TokenEnvVar overrides any stored token; useful for CI.
	TokenEnvVar = "VASTCTL_CLOUD_TOKEN"
)

var (
	// ErrNotLoggedIn is returned when no token is stored anywhere.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrEmptyToken is returned when saving a blank token.
	ErrEmptyToken = errors.New("empty token")
)

// TokenSource identifies where a token was found.
type TokenSource string

const (
	TokenSourceEnv     TokenSource = "environment"
	TokenSourceKeyring TokenSource = "keyring"
	TokenSourceFile    TokenSource = "file"
)

// TokenStore persists the cloud access token. The system keyring is
// preferred; a mode-0600 file is the fallback for headless machines where
// no keyring backend is available. The environment variable always wins
// on read so automation never touches either store.
type TokenStore struct {
	tokenFile string

	// openRing is swappable in tests.
	openRing func() (keyring.Keyring, error)
}

// NewTokenStore creates a token store with the given fallback file path.
func NewTokenStore(tokenFile string) *TokenStore {
	return &TokenStore{tokenFile: tokenFile, openRing: openSystemRing}
}

func openSystemRing() (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName:              keyringService,
		KeychainTrustApplication: true,
	})
}

// Save stores the token, preferring the keyring and falling back to the
// token file.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	if ring, err := s.openRing(); err == nil {
		err = ring.Set(keyring.Item{
			Key:   tokenKey,
			Data:  []byte(token),
			Label: "vastctl cloud token",
		})
		if err == nil {
			return nil
		}
	}

	if s.tokenFile == "" {
		return errors.New("no keyring available and no token file configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenFile), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(s.tokenFile, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Load returns the current token, checking the environment variable, the
// keyring, and the token file in that order. Returns ErrNotLoggedIn when
// none has a token.
func (s *TokenStore) Load() (string, error) {
	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		return env, nil
	}

	if ring, err := s.openRing(); err == nil {
		if item, err := ring.Get(tokenKey); err == nil && len(item.Data) > 0 {
			return strings.TrimSpace(string(item.Data)), nil
		}
	}

	if s.tokenFile != "" {
		if data, err := os.ReadFile(s.tokenFile); err == nil {
			if token := strings.TrimSpace(string(data)); token != "" {
				return token, nil
			}
		}
	}

	return "", ErrNotLoggedIn
}

// Delete removes the token from both the keyring and the token file.
func (s *TokenStore) Delete() error {
	if ring, err := s.openRing(); err == nil {
		if err := ring.Remove(tokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("remove keyring token: %w", err)
		}
	}
	if s.tokenFile != "" {
		if err := os.Remove(s.tokenFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove token file: %w", err)
		}
	}
	return nil
}

// LoggedIn reports whether a token is available from any source.
func (s *TokenStore) LoggedIn() bool {
	_, err := s.Load()
	return err == nil
}

// Source reports where the current token comes from.
func (s *TokenStore) Source() (TokenSource, bool) {
	if strings.TrimSpace(os.Getenv(TokenEnvVar)) != "" {
		return TokenSourceEnv, true
	}
	if ring, err := s.openRing(); err == nil {
		if item, err := ring.Get(tokenKey); err == nil && len(item.Data) > 0 {
			return TokenSourceKeyring, true
		}
	}
	if s.tokenFile != "" {
		if data, err := os.ReadFile(s.tokenFile); err == nil && strings.TrimSpace(string(data)) != "" {
			return TokenSourceFile, true
		}
	}
	return "", false
}
