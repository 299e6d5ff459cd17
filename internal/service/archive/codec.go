package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yeka/zip"
)

// Codec compresses a folder into a single archive file.
type Codec interface {
	Compress(srcDir, dst string) error
}

// ZipCodec writes AES-256 encrypted zip archives. Without a passphrase the
// entries are stored unencrypted.
type ZipCodec struct {
	Passphrase string
}

// Compress archives srcDir under its base name into dst.
func (c ZipCodec) Compress(srcDir, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	w := zip.NewWriter(f)
	root := filepath.Base(srcDir)
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return c.addFile(w, filepath.ToSlash(filepath.Join(root, rel)), path)
	})

	closeErr := w.Close()
	fileErr := f.Close()
	switch {
	case walkErr != nil:
		return fmt.Errorf("failed to archive %s: %w", srcDir, walkErr)
	case closeErr != nil:
		return fmt.Errorf("failed to finish archive: %w", closeErr)
	case fileErr != nil:
		return fmt.Errorf("failed to close archive: %w", fileErr)
	}
	return nil
}

func (c ZipCodec) addFile(w *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	var dst io.Writer
	if c.Passphrase != "" {
		dst, err = w.Encrypt(name, c.Passphrase, zip.AES256Encryption)
	} else {
		dst, err = w.Create(name)
	}
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	_, err = io.Copy(dst, src)
	return err
}
