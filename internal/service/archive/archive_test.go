package archive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/timeutil"
)

var epoch = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func makeFolder(t *testing.T, resultDir, identifier string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(resultDir, identifier)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestSidecarStore(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "ABC123.zip")
	store := NewSidecarStore(archivePath)

	_, ok := store.Get("fp")
	assert.False(t, ok)

	store.Set("fp", "http://server/files/1")
	require.NoError(t, store.Err())
	url, ok := store.Get("other")
	assert.True(t, ok)
	assert.Equal(t, "http://server/files/1", url)

	entries, err := os.ReadDir(filepath.Dir(archivePath))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	store.Delete("fp")
	store.Delete("fp")
	require.NoError(t, store.Err())
	_, ok = store.Get("fp")
	assert.False(t, ok)
}

func TestCheckStable(t *testing.T) {
	resultDir := t.TempDir()

	t.Run("unchanged", func(t *testing.T) {
		dir := makeFolder(t, resultDir, "STABLE1", map[string]string{"clip.mp4": "video"})
		clock := timeutil.NewMockClock(epoch)
		require.NoError(t, CheckStable(dir, 2*time.Second, clock))
		assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
	})

	t.Run("growing", func(t *testing.T) {
		dir := makeFolder(t, resultDir, "GROW1", map[string]string{"clip.mp4": "vid"})
		clock := timeutil.NewMockClock(epoch)
		clock.OnSleep = func(time.Time) {
			os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("video data"), 0644)
		}
		assert.ErrorIs(t, CheckStable(dir, 2*time.Second, clock), ErrNotStable)
	})

	t.Run("disappearing", func(t *testing.T) {
		dir := makeFolder(t, resultDir, "GONE1", map[string]string{"clip.mp4": "video"})
		clock := timeutil.NewMockClock(epoch)
		clock.OnSleep = func(time.Time) { os.RemoveAll(dir) }
		assert.ErrorIs(t, CheckStable(dir, 2*time.Second, clock), ErrNotStable)
	})

	t.Run("encoder still writing", func(t *testing.T) {
		dir := makeFolder(t, resultDir, "PART1", map[string]string{"clip.part.mp4": "video"})
		assert.ErrorIs(t, CheckStable(dir, time.Second, timeutil.NewMockClock(epoch)), ErrNotStable)
	})

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, CheckStable(filepath.Join(resultDir, "NOPE"), time.Second, timeutil.NewMockClock(epoch)), ErrNotStable)
	})
}

func TestZipCodec_EncryptedRoundTrip(t *testing.T) {
	resultDir := t.TempDir()
	dir := makeFolder(t, resultDir, "ABC123", map[string]string{"clip.mp4": "video", "preview.jpg": "jpeg"})
	dst := filepath.Join(resultDir, "ABC123.zip")

	require.NoError(t, ZipCodec{Passphrase: "secret"}.Compress(dir, dst))

	r, err := zip.OpenReader(dst)
	require.NoError(t, err)
	defer r.Close()

	got := map[string]string{}
	for _, f := range r.File {
		require.True(t, f.IsEncrypted(), f.Name)
		f.SetPassword("secret")
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		got[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{"ABC123/clip.mp4": "video", "ABC123/preview.jpg": "jpeg"}, got)
}

func TestZipCodec_WithoutPassphrase(t *testing.T) {
	resultDir := t.TempDir()
	dir := makeFolder(t, resultDir, "ABC123", map[string]string{"clip.mp4": "video"})
	dst := filepath.Join(resultDir, "ABC123.zip")

	require.NoError(t, ZipCodec{}.Compress(dir, dst))

	r, err := zip.OpenReader(dst)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 1)
	assert.False(t, r.File[0].IsEncrypted())
}

func TestPackager_PendingAndArchives(t *testing.T) {
	resultDir := t.TempDir()
	makeFolder(t, resultDir, "AAA111", map[string]string{"clip.mp4": "a"})
	makeFolder(t, resultDir, "BBB222", map[string]string{"clip.mp4": "b"})
	makeFolder(t, resultDir, "uploaded", nil)
	require.NoError(t, os.WriteFile(filepath.Join(resultDir, "BBB222.zip"), []byte("zip"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(resultDir, "BBB222.zip.url"), []byte("http://x"), 0644))

	p := NewPackager(resultDir, "uploaded", "zip", time.Second, ZipCodec{}, timeutil.NewMockClock(epoch))

	pending, err := p.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA111"}, pending)

	archives, err := p.Archives()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(resultDir, "BBB222.zip")}, archives)
	assert.Equal(t, "BBB222", p.Identifier(archives[0]))

	path, err := p.Package("AAA111")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
	assert.DirExists(t, filepath.Join(resultDir, "AAA111"), "source folder is left untouched")
}

func TestPackager_MissingResultDir(t *testing.T) {
	p := NewPackager(filepath.Join(t.TempDir(), "none"), "uploaded", "zip", time.Second, ZipCodec{}, nil)
	pending, err := p.Pending()
	assert.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMoveUploaded(t *testing.T) {
	resultDir := t.TempDir()
	makeFolder(t, resultDir, "ABC123", map[string]string{"clip.mp4": "video"})

	dst, err := MoveUploaded(resultDir, "uploaded", "ABC123")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ABC123_[0-9a-f]{16}$`), filepath.Base(dst))
	assert.Equal(t, filepath.Join(resultDir, "uploaded"), filepath.Dir(dst))
	assert.FileExists(t, filepath.Join(dst, "clip.mp4"))
	assert.NoDirExists(t, filepath.Join(resultDir, "ABC123"))

	again, err := MoveUploaded(resultDir, "uploaded", "ABC123")
	assert.NoError(t, err)
	assert.Empty(t, again, "an already moved folder is a no-op")
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	assert.True(t, Probe(context.Background(), srv.Client(), srv.URL, time.Second), "any response counts")

	srv.Close()
	assert.False(t, Probe(context.Background(), http.DefaultClient, srv.URL, time.Second))
	assert.False(t, Probe(context.Background(), http.DefaultClient, "://bad", time.Second))
}

type fakeTransfer struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (f *fakeTransfer) Send(archivePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, filepath.Base(archivePath))
	return f.err
}

type statusUpdate struct {
	folder string
	status model.ClipStatus
	path   string
}

type recordingRepo struct {
	mu      sync.Mutex
	updates []statusUpdate
}

func (r *recordingRepo) Insert(*model.Clip) (int64, error) { return 0, nil }
func (r *recordingRepo) UpdateStatus(folder string, status model.ClipStatus, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusUpdate{folder, status, path})
	return nil
}
func (r *recordingRepo) GetByID(int64) (*model.Clip, error)            { return nil, nil }
func (r *recordingRepo) GetAll(*dto.ClipFilters) ([]model.Clip, error) { return nil, nil }
func (r *recordingRepo) GetTotalCount(*dto.ClipFilters) (int, error)   { return 0, nil }
func (r *recordingRepo) DeleteAll() error                              { return nil }

type eventLog struct {
	mu     sync.Mutex
	events []dto.Event
}

func (e *eventLog) Publish(ev dto.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func newTestService(t *testing.T, resultDir string, transfer Transfer, reachable bool) (*Service, *recordingRepo, *eventLog) {
	repo := &recordingRepo{}
	events := &eventLog{}
	clock := timeutil.NewMockClock(epoch)
	packager := NewPackager(resultDir, "uploaded", "zip", 2*time.Second, ZipCodec{Passphrase: "pw"}, clock)
	svc := NewService(Options{ResultDirectory: resultDir, UploadedDirName: "uploaded", ProbeURL: "http://unused", ProbeTimeout: time.Second, Interval: time.Second},
		packager, transfer, nil, repo, events, clock, logger.NewWriter(io.Discard))
	svc.probe = func(context.Context) bool { return reachable }
	return svc, repo, events
}

func TestService_RunOnce_UploadsAndMoves(t *testing.T) {
	resultDir := t.TempDir()
	makeFolder(t, resultDir, "ABC123", map[string]string{"clip.mp4": "video"})
	transfer := &fakeTransfer{}

	svc, repo, events := newTestService(t, resultDir, transfer, true)
	svc.RunOnce(context.Background())

	assert.Equal(t, []string{"ABC123.zip"}, transfer.sent)
	assert.NoFileExists(t, filepath.Join(resultDir, "ABC123.zip"))
	assert.NoDirExists(t, filepath.Join(resultDir, "ABC123"))

	moved, err := filepath.Glob(filepath.Join(resultDir, "uploaded", "ABC123_*"))
	require.NoError(t, err)
	require.Len(t, moved, 1)

	statuses := make([]model.ClipStatus, 0, len(repo.updates))
	for _, u := range repo.updates {
		statuses = append(statuses, u.status)
	}
	assert.Equal(t, []model.ClipStatus{model.ClipStable, model.ClipCompressed, model.ClipUploaded}, statuses)
	assert.Equal(t, moved[0], repo.updates[2].path)

	require.Len(t, events.events, 1)
	assert.Equal(t, dto.EventUploaded, events.events[0].Type)

	// a second pass has nothing left to do
	svc.RunOnce(context.Background())
	assert.Len(t, transfer.sent, 1)
}

func TestService_RunOnce_Unreachable(t *testing.T) {
	resultDir := t.TempDir()
	makeFolder(t, resultDir, "ABC123", map[string]string{"clip.mp4": "video"})
	transfer := &fakeTransfer{}

	svc, _, _ := newTestService(t, resultDir, transfer, false)
	svc.RunOnce(context.Background())

	assert.FileExists(t, filepath.Join(resultDir, "ABC123.zip"), "packaging does not need the server")
	assert.Empty(t, transfer.sent)
}

func TestService_RunOnce_FailedUploadKeepsArchive(t *testing.T) {
	resultDir := t.TempDir()
	makeFolder(t, resultDir, "AAA111", map[string]string{"clip.mp4": "a"})
	makeFolder(t, resultDir, "BBB222", map[string]string{"clip.mp4": "b"})
	transfer := &fakeTransfer{err: errors.New("connection reset")}

	svc, _, _ := newTestService(t, resultDir, transfer, true)
	svc.RunOnce(context.Background())

	sent := append([]string(nil), transfer.sent...)
	sort.Strings(sent)
	assert.Equal(t, []string{"AAA111.zip", "BBB222.zip"}, sent, "one failure does not stop the pass")
	assert.FileExists(t, filepath.Join(resultDir, "AAA111.zip"))
	assert.DirExists(t, filepath.Join(resultDir, "AAA111"))
}

func TestService_UploadWithoutSourceFolder(t *testing.T) {
	resultDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resultDir, "ABC123.zip"), []byte("zip"), 0644))

	svc, _, _ := newTestService(t, resultDir, &fakeTransfer{}, true)
	svc.RunOnce(context.Background())

	assert.NoFileExists(t, filepath.Join(resultDir, "ABC123.zip"))
}

func TestService_EndToEndWithTus(t *testing.T) {
	srv := newTusServer(t)
	resultDir := t.TempDir()
	makeFolder(t, resultDir, "ABC123", map[string]string{"clip.mp4": "video", "preview.jpg": "jpeg"})

	svc, _, _ := newTestService(t, resultDir, NewTusTransfer(srv.Endpoint(), 64, srv.Client()), true)
	svc.RunOnce(context.Background())

	u := srv.only()
	require.NotNil(t, u)
	assert.Equal(t, int64(len(u.data)), u.length)
	assert.Equal(t, "ABC123.zip", metadataValue(u.metadata, "filename"))
	assert.NoFileExists(t, filepath.Join(resultDir, "ABC123.zip.url"))
}

func TestService_RunStopsWhenCancelled(t *testing.T) {
	svc, _, _ := newTestService(t, t.TempDir(), &fakeTransfer{}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
