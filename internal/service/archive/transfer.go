package archive

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/eventials/go-tus"
)

// ErrSessionLost reports a recorded upload session the server no longer knows.
var ErrSessionLost = errors.New("upload session not found on server")

// Transfer sends one archive to the collection server.
type Transfer interface {
	Send(archivePath string) error
}

// TusTransfer uploads archives with the tus resumable protocol, keeping the
// session URL in a sidecar file so an interrupted upload resumes at the
// offset the server reports.
type TusTransfer struct {
	url       string
	chunkSize int64
	client    *http.Client
}

func NewTusTransfer(url string, chunkSize int64, client *http.Client) *TusTransfer {
	if client == nil {
		client = http.DefaultClient
	}
	return &TusTransfer{url: url, chunkSize: chunkSize, client: client}
}

// Send uploads archivePath completely. On success the sidecar is removed.
func (t *TusTransfer) Send(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	store := NewSidecarStore(archivePath)
	client, err := tus.NewClient(t.url, &tus.Config{
		ChunkSize:  t.chunkSize,
		Resume:     true,
		Store:      store,
		Header:     make(http.Header),
		HttpClient: t.client,
	})
	if err != nil {
		return fmt.Errorf("failed to create tus client: %w", err)
	}

	upload, err := tus.NewUploadFromFile(f)
	if err != nil {
		return fmt.Errorf("failed to prepare upload: %w", err)
	}

	var uploader *tus.Uploader
	if _, ok := store.Get(upload.Fingerprint); ok {
		uploader, err = client.ResumeUpload(upload)
		if errors.Is(err, tus.ErrUploadNotFound) {
			store.Delete(upload.Fingerprint)
			return fmt.Errorf("%w: %v", ErrSessionLost, err)
		}
	} else {
		uploader, err = client.CreateUpload(upload)
		if err == nil && store.Err() != nil {
			return fmt.Errorf("failed to record upload session: %w", store.Err())
		}
	}
	if err != nil {
		return fmt.Errorf("failed to start upload: %w", err)
	}

	if err := uploader.Upload(); err != nil {
		return fmt.Errorf("upload interrupted: %w", err)
	}

	store.Delete(upload.Fingerprint)
	if err := store.Err(); err != nil {
		return fmt.Errorf("failed to remove upload session: %w", err)
	}
	return nil
}
