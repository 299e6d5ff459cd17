package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := bytes.Repeat([]byte("0123456789abcdef"), size/16)
	path := filepath.Join(t.TempDir(), "ABC123.zip")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path, data
}

func TestTusTransfer_NewUpload(t *testing.T) {
	srv := newTusServer(t)
	archivePath, data := writeArchive(t, 4096)

	sidecarSeen := false
	srv.onPatch = func() {
		_, err := os.Stat(SidecarPath(archivePath))
		sidecarSeen = sidecarSeen || err == nil
	}

	tr := NewTusTransfer(srv.Endpoint(), 1000, srv.Client())
	require.NoError(t, tr.Send(archivePath))

	u := srv.only()
	require.NotNil(t, u)
	assert.Equal(t, data, u.data)
	assert.Equal(t, "ABC123.zip", metadataValue(u.metadata, "filename"))
	assert.Equal(t, []int64{0, 1000, 2000, 3000, 4000}, srv.patches)
	assert.True(t, sidecarSeen, "session URL is persisted before data is sent")
	assert.NoFileExists(t, SidecarPath(archivePath))
}

func TestTusTransfer_ResumesAtServerOffset(t *testing.T) {
	srv := newTusServer(t)
	archivePath, data := writeArchive(t, 4096)

	url := srv.seed(data[:1500], int64(len(data)))
	require.NoError(t, os.WriteFile(SidecarPath(archivePath), []byte(url+"\n"), 0644))

	tr := NewTusTransfer(srv.Endpoint(), 2000, srv.Client())
	require.NoError(t, tr.Send(archivePath))

	assert.Equal(t, []int64{1500, 3500}, srv.patches)
	assert.Equal(t, data, srv.upload("seed1").data)
	assert.NoFileExists(t, SidecarPath(archivePath))
}

func TestTusTransfer_InterruptedUploadKeepsSidecar(t *testing.T) {
	srv := newTusServer(t)
	archivePath, data := writeArchive(t, 4096)
	srv.failAt = 2

	tr := NewTusTransfer(srv.Endpoint(), 1000, srv.Client())
	require.Error(t, tr.Send(archivePath))
	require.FileExists(t, SidecarPath(archivePath))

	require.NoError(t, tr.Send(archivePath))
	assert.Equal(t, data, srv.only().data)
	assert.Len(t, srv.uploads, 1, "the second pass resumes the same session")
}

func TestTusTransfer_LostSession(t *testing.T) {
	srv := newTusServer(t)
	archivePath, _ := writeArchive(t, 64)
	require.NoError(t, os.WriteFile(SidecarPath(archivePath), []byte(srv.Endpoint()+"gone"), 0644))

	tr := NewTusTransfer(srv.Endpoint(), 1000, srv.Client())
	err := tr.Send(archivePath)

	assert.ErrorIs(t, err, ErrSessionLost)
	assert.NoFileExists(t, SidecarPath(archivePath))
	assert.Empty(t, srv.uploads)
}
