package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"platecam/internal/timeutil"
)

// Packager turns finished result folders into archives.
type Packager struct {
	resultDir   string
	uploadedDir string
	ext         string
	window      time.Duration
	codec       Codec
	clock       timeutil.Clock
}

func NewPackager(resultDir, uploadedDirName, ext string, window time.Duration, codec Codec, clock timeutil.Clock) *Packager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Packager{
		resultDir:   resultDir,
		uploadedDir: uploadedDirName,
		ext:         "." + strings.TrimPrefix(ext, "."),
		window:      window,
		codec:       codec,
		clock:       clock,
	}
}

// ArchivePath returns where the archive of an identifier folder is written.
func (p *Packager) ArchivePath(identifier string) string {
	return filepath.Join(p.resultDir, identifier+p.ext)
}

// Pending lists identifier folders that have no archive yet, sorted.
func (p *Packager) Pending() ([]string, error) {
	entries, err := os.ReadDir(p.resultDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p.resultDir, err)
	}

	var pending []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == p.uploadedDir {
			continue
		}
		if _, err := os.Stat(p.ArchivePath(e.Name())); err == nil {
			continue
		}
		pending = append(pending, e.Name())
	}
	sort.Strings(pending)
	return pending, nil
}

// Archives lists the archive files waiting in the result directory, sorted.
func (p *Packager) Archives() ([]string, error) {
	entries, err := os.ReadDir(p.resultDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p.resultDir, err)
	}

	var archives []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != p.ext {
			continue
		}
		archives = append(archives, filepath.Join(p.resultDir, e.Name()))
	}
	sort.Strings(archives)
	return archives, nil
}

// Identifier returns the folder name an archive was built from.
func (p *Packager) Identifier(archivePath string) string {
	return strings.TrimSuffix(filepath.Base(archivePath), p.ext)
}

// Stable checks that an identifier folder stopped changing.
func (p *Packager) Stable(identifier string) error {
	return CheckStable(filepath.Join(p.resultDir, identifier), p.window, p.clock)
}

// Compress archives an identifier folder. The archive is built under a
// temporary name and renamed; the folder is left untouched.
func (p *Packager) Compress(identifier string) (string, error) {
	dst := p.ArchivePath(identifier)
	tmp := dst + ".tmp"
	if err := p.codec.Compress(filepath.Join(p.resultDir, identifier), tmp); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	return dst, nil
}

// Package archives one identifier folder once it is stable.
func (p *Packager) Package(identifier string) (string, error) {
	if err := p.Stable(identifier); err != nil {
		return "", err
	}
	return p.Compress(identifier)
}
