package infra

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/fpt/klein-bot/internal/session"
)

// encMode writes deterministic CBOR so identical state produces identical
// files.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("infra: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("infra: CBOR decoder initialization failed: " + err.Error())
	}
}

// FileCredentialStore persists session credentials as a CBOR file.
type FileCredentialStore struct {
	path string
	mu   sync.Mutex
}

// NewFileCredentialStore stores credentials at path.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// DefaultCredentialPath is ~/.kleinbot/auth/creds.cbor.
func DefaultCredentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".kleinbot", "auth", "creds.cbor")
}

func (s *FileCredentialStore) Path() string { return s.path }

// Load returns empty credentials when nothing has been saved yet.
func (s *FileCredentialStore) Load(ctx context.Context) (session.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creds session.Credentials
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return creds, nil
	}
	if err != nil {
		return creds, errors.Wrap(err, "failed to read credentials")
	}
	if len(data) == 0 {
		return creds, nil
	}
	if err := decMode.Unmarshal(data, &creds); err != nil {
		return creds, errors.Wrapf(err, "failed to decode credentials at %s", s.path)
	}
	return creds, nil
}

// Save writes to a temp file in the same directory and renames it over the
// old state, so a crash never leaves a half-written file.
func (s *FileCredentialStore) Save(ctx context.Context, creds session.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encMode.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "failed to encode credentials")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create credentials directory")
	}
	tmp, err := os.CreateTemp(dir, ".creds-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write credentials")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to set credentials mode")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close credentials file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "failed to replace credentials")
	}
	return nil
}

// MemoryCredentialStore keeps credentials for the life of the process.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	creds session.Credentials
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (m *MemoryCredentialStore) Load(ctx context.Context) (session.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.creds
	if m.creds.Keys != nil {
		c.Keys = make(map[string]string, len(m.creds.Keys))
		for k, v := range m.creds.Keys {
			c.Keys[k] = v
		}
	}
	return c, nil
}

func (m *MemoryCredentialStore) Save(ctx context.Context, creds session.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	return nil
}

var (
	_ session.CredentialStore = (*FileCredentialStore)(nil)
	_ session.CredentialStore = (*MemoryCredentialStore)(nil)
)
