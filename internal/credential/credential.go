// Package credential persists the bearer token the table server issues.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lox/cardtable/internal/protocol"
)

// ErrNoToken is returned by Load when nothing has been stored yet.
var ErrNoToken = errors.New("credential: no token")

// Store holds the current bearer token.
type Store interface {
	Load() (protocol.AuthToken, error)
	Save(protocol.AuthToken) error
}

// MemoryStore keeps the token for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	token protocol.AuthToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (protocol.AuthToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.Empty() {
		return nil, ErrNoToken
	}
	return append(protocol.AuthToken(nil), m.token...), nil
}

func (m *MemoryStore) Save(t protocol.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = append(protocol.AuthToken(nil), t...)
	return nil
}

// FileStore keeps the token in a file as its JSON array text, the same
// form the Authorization header carries. The file is read once and cached.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	token  protocol.AuthToken
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (protocol.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		data, err := os.ReadFile(f.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read token file: %w", err)
		default:
			t, err := protocol.ParseAuthToken(string(data))
			if err != nil {
				return nil, fmt.Errorf("parse token file %s: %w", f.path, err)
			}
			f.token = t
		}
		f.loaded = true
	}

	if f.token.Empty() {
		return nil, ErrNoToken
	}
	return append(protocol.AuthToken(nil), f.token...), nil
}

func (f *FileStore) Save(t protocol.AuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := t.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := writeFileAtomic(f.path, data, 0o600); err != nil {
		return err
	}
	f.token = append(protocol.AuthToken(nil), t...)
	f.loaded = true
	return nil
}

// writeFileAtomic writes to a temporary file in the same directory and
// renames it over filename, so a reader sees either the old token or the
// new one.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
