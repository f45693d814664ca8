package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "benchbase"
	keyringUser    = "airtable_api_key"
	tokenFileName  = "airtable_api_key"
	fileMode       = 0600
)

// ErrNoToken is returned when neither the keychain nor the fallback file
// holds an API key.
var ErrNoToken = errors.New("no stored API key")

// TokenStore keeps the API key in the OS keychain and falls back to a file
// in dir when the keychain is unavailable.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a token store using dir for the fallback file.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) filePath() string {
	return filepath.Join(s.dir, tokenFileName)
}

// Save stores the token.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return s.saveFile(token)
	}

	// remove the file copy once the keychain holds the key
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("removing token file", "path", s.filePath(), "error", err)
	}

	return nil
}

// Get returns the stored token or ErrNoToken.
func (s *TokenStore) Get() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	token, err = s.readFile()
	if err != nil {
		return "", err
	}

	// migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated API key from file to OS keychain")
		os.Remove(s.filePath())
	}

	return token, nil
}

// Delete removes the token from both the keychain and the fallback file.
func (s *TokenStore) Delete() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keychain entry: %w", err)
	}
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting token file: %w", err)
	}
	return nil
}

func (s *TokenStore) saveFile(token string) error {
	if s.dir == "" {
		return errors.New("token directory not set")
	}
	if err := os.WriteFile(s.filePath(), []byte(token), fileMode); err != nil {
		return fmt.Errorf("writing token file %s: %w", s.filePath(), err)
	}
	return nil
}

func (s *TokenStore) readFile() (string, error) {
	if s.dir == "" {
		return "", ErrNoToken
	}
	b, err := os.ReadFile(s.filePath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", s.filePath(), err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
