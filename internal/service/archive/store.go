package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const sidecarExt = ".url"

// SidecarPath returns the file that records the upload session of an archive.
func SidecarPath(archivePath string) string {
	return archivePath + sidecarExt
}

// SidecarStore persists the session URL of a single archive next to it.
// It satisfies tus.Store; the fingerprint is ignored because each store
// serves one archive.
type SidecarStore struct {
	path string
	err  error
}

func NewSidecarStore(archivePath string) *SidecarStore {
	return &SidecarStore{path: SidecarPath(archivePath)}
}

func (s *SidecarStore) Get(string) (string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	url := strings.TrimSpace(string(data))
	return url, url != ""
}

// Set writes the URL to a temporary file and renames it into place.
func (s *SidecarStore) Set(_ string, url string) {
	s.err = writeAtomic(s.path, []byte(url))
}

func (s *SidecarStore) Delete(string) {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.err = err
	}
}

func (s *SidecarStore) Close() {}

// Err returns the last write failure.
func (s *SidecarStore) Err() error {
	return s.err
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
