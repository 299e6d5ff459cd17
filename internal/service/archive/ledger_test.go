package archive

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platecam/internal/model"
)

func TestPackagerScan(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{
		"AB123CD/clip.mp4",
		"XY987ZW/clip.mp4",
		"XY987ZW.zip",
		"uploaded/KR55511_0a1b2c3d4e5f6a7b/clip.mp4",
	} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("data"), 0644))
	}

	p := NewPackager(dir, "uploaded", "zip", 0, ZipCodec{}, nil)
	clips, err := p.Scan()
	require.NoError(t, err)
	require.Len(t, clips, 3)

	sort.Slice(clips, func(i, j int) bool { return clips[i].Identifier < clips[j].Identifier })
	assert.Equal(t, "AB123CD", clips[0].Identifier)
	assert.Equal(t, model.ClipWriting, clips[0].Status)
	assert.Equal(t, "KR55511", clips[1].Identifier)
	assert.Equal(t, model.ClipUploaded, clips[1].Status)
	assert.Equal(t, filepath.Join(dir, "uploaded", "KR55511_0a1b2c3d4e5f6a7b"), clips[1].UploadedPath)
	assert.Equal(t, "XY987ZW", clips[2].Identifier)
	assert.Equal(t, model.ClipCompressed, clips[2].Status)
	assert.False(t, clips[0].EndedAt.IsZero())
}

func TestPackagerScan_MissingDirectory(t *testing.T) {
	p := NewPackager(filepath.Join(t.TempDir(), "missing"), "uploaded", "zip", 0, ZipCodec{}, nil)
	clips, err := p.Scan()
	require.NoError(t, err)
	assert.Empty(t, clips)
}

func TestUploadedIdentifier(t *testing.T) {
	assert.Equal(t, "AB_12", uploadedIdentifier("AB_12_0a1b2c3d4e5f6a7b"))
	assert.Equal(t, "PLATE", uploadedIdentifier("PLATE"))
}
