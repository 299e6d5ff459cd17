package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"platecam/internal/model"
)

// Scan rebuilds ledger records from what is on disk: result folders are
// writing or compressed depending on their archive, folders under the
// uploaded directory are uploaded. Times come from file modification times.
func (p *Packager) Scan() ([]model.Clip, error) {
	entries, err := os.ReadDir(p.resultDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p.resultDir, err)
	}

	var clips []model.Clip
	for _, e := range entries {
		if !e.IsDir() || e.Name() == p.uploadedDir {
			continue
		}
		c, err := scanFolder(filepath.Join(p.resultDir, e.Name()))
		if err != nil {
			return nil, err
		}
		c.Identifier = e.Name()
		c.Folder = e.Name()
		c.Status = model.ClipWriting
		if _, err := os.Stat(p.ArchivePath(e.Name())); err == nil {
			c.Status = model.ClipCompressed
		}
		clips = append(clips, c)
	}

	uploaded := filepath.Join(p.resultDir, p.uploadedDir)
	entries, err = os.ReadDir(uploaded)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list %s: %w", uploaded, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(uploaded, e.Name())
		c, err := scanFolder(path)
		if err != nil {
			return nil, err
		}
		c.Identifier = uploadedIdentifier(e.Name())
		c.Folder = c.Identifier
		c.Status = model.ClipUploaded
		c.UploadedPath = path
		clips = append(clips, c)
	}
	return clips, nil
}

// uploadedIdentifier strips the random suffix MoveUploaded appends.
func uploadedIdentifier(name string) string {
	if i := strings.LastIndex(name, "_"); i > 0 {
		return name[:i]
	}
	return name
}

func scanFolder(dir string) (model.Clip, error) {
	var first, last time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mod := info.ModTime()
		if first.IsZero() || mod.Before(first) {
			first = mod
		}
		if mod.After(last) {
			last = mod
		}
		return nil
	})
	if err != nil {
		return model.Clip{}, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return model.Clip{StartedAt: first, EndedAt: last, CreatedAt: last}, nil
}
