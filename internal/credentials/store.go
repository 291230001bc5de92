package credentials

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Store reads and writes Settings as JSON at a fixed path.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a Store backed by fs. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("credential file path is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, path: path}, nil
}

// Path returns the credential file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the full settings, login included. The file is written beside the
// target and renamed into place so readers see either the old or the new content.
func (s *Store) Save(settings *Settings) error {
	if settings == nil {
		return fmt.Errorf("settings are required")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := s.fs.Chmod(tmpName, 0o600); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

// Load reads the settings back. User and password fall back to d only when
// the file has no such key; a present but empty value is kept.
func (s *Store) Load(d Defaults) (*Settings, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if _, ok := keys["user"]; !ok {
		settings.User = d.User
	}
	if _, ok := keys["pwd"]; !ok {
		settings.Password = d.Password
	}
	return &settings, nil
}
