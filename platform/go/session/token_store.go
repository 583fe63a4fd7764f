package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Token is the persisted part of a session.
type Token struct {
	AccessToken string    `yaml:"access_token"`
	ExpiresAt   time.Time `yaml:"expires_at,omitempty"`
	Email       string    `yaml:"email,omitempty"`
}

// TokenStore persists the access token between runs. Load returns a zero
// Token when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, token Token) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the token for the lifetime of the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token Token
}

func (m *MemoryTokenStore) Load(context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = Token{}
	return nil
}

// FileTokenStore keeps the token in a YAML file readable only by the owner.
type FileTokenStore struct {
	Path string
}

// DefaultTokenPath is ~/.config/igreja/session.yaml, or the platform equivalent.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "igreja", "session.yaml"), nil
}

func (f FileTokenStore) Load(context.Context) (Token, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Token{}, nil
		}
		return Token{}, fmt.Errorf("read session file: %w", err)
	}

	var token Token
	if err := yaml.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("decode session file %s: %w", f.Path, err)
	}
	return token, nil
}

func (f FileTokenStore) Save(_ context.Context, token Token) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := yaml.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (f FileTokenStore) Clear(context.Context) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
