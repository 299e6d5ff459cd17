package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// randomSuffix returns 16 hex characters.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// MoveUploaded moves resultDir/identifier to resultDir/uploadedDir/identifier_<random>.
// It returns "" without error when the source folder is already gone.
func MoveUploaded(resultDir, uploadedDir, identifier string) (string, error) {
	src := filepath.Join(resultDir, identifier)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	base := filepath.Join(resultDir, uploadedDir)
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploaded directory: %w", err)
	}

	for {
		dst := filepath.Join(base, identifier+"_"+randomSuffix())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", src, err)
		}
		return dst, nil
	}
}
