// Package blob is a local-disk content store. Objects are written under a
// base directory keyed by caller-supplied slash-separated keys and served
// back over a configured public base URL.
package blob

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Store struct {
	dir     string
	baseURL string
}

func NewStore(dir, baseURL string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("blob dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Put writes the object and returns its public URL. Keys must stay inside
// the base directory; anything that escapes after cleaning is rejected.
func (s *Store) Put(key string, data []byte) (string, error) {
	clean, err := s.cleanKey(key)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob subdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.baseURL + "/" + clean, nil
}

func (s *Store) Get(key string) ([]byte, error) {
	clean, err := s.cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Dir returns the base directory, for mounting a static file route.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) cleanKey(key string) (string, error) {
	clean := path.Clean(strings.TrimSpace(key))
	if clean == "" || clean == "." || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return clean, nil
}
