package archive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"platecam/internal/timeutil"
)

// ErrNotStable reports a folder that is still changing or has disappeared.
var ErrNotStable = errors.New("folder is not stable")

const partialMarker = ".part."

// folderSize sums the sizes of all regular files below dir. It fails with
// ErrNotStable when dir is gone or still holds an in-progress file.
func folderSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(d.Name(), partialMarker) {
			return ErrNotStable
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNotStable
	}
	return total, err
}

// CheckStable measures dir twice, window apart, and returns ErrNotStable when
// the size changed, dir disappeared or a writer is still active.
func CheckStable(dir string, window time.Duration, clock timeutil.Clock) error {
	before, err := folderSize(dir)
	if err != nil {
		return err
	}
	clock.Sleep(window)
	after, err := folderSize(dir)
	if err != nil {
		return err
	}
	if before != after {
		return ErrNotStable
	}
	return nil
}
