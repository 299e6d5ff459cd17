package archive

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type tusUpload struct {
	length   int64
	data     []byte
	metadata string
}

// tusServer is a minimal tus 1.0 endpoint: POST creates, HEAD reports the
// offset, PATCH appends a chunk.
type tusServer struct {
	*httptest.Server

	mu      sync.Mutex
	next    int
	uploads map[string]*tusUpload
	patches []int64 // offset of every accepted PATCH
	onPatch func()
	failAt  int // reject the n-th PATCH (1-based) with 500
}

func newTusServer(t *testing.T) *tusServer {
	s := &tusServer{uploads: make(map[string]*tusUpload)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *tusServer) Endpoint() string { return s.URL + "/files/" }

// seed registers a partially received upload and returns its URL.
func (s *tusServer) seed(data []byte, length int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("seed%d", s.next)
	s.uploads[id] = &tusUpload{length: length, data: append([]byte(nil), data...)}
	return s.Endpoint() + id
}

func (s *tusServer) upload(id string) *tusUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[id]
}

func (s *tusServer) only() *tusUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.uploads {
		return u
	}
	return nil
}

func (s *tusServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Tus-Resumable", "1.0.0")
	id := strings.TrimPrefix(r.URL.Path, "/files/")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		length, err := strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
		if err != nil {
			http.Error(w, "bad length", http.StatusBadRequest)
			return
		}
		s.next++
		id = fmt.Sprintf("u%d", s.next)
		s.uploads[id] = &tusUpload{length: length, metadata: r.Header.Get("Upload-Metadata")}
		w.Header().Set("Location", s.Endpoint()+id)
		w.WriteHeader(http.StatusCreated)

	case http.MethodHead:
		u, ok := s.uploads[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Upload-Offset", strconv.Itoa(len(u.data)))
		w.Header().Set("Upload-Length", strconv.FormatInt(u.length, 10))
		w.WriteHeader(http.StatusOK)

	case http.MethodPatch:
		u, ok := s.uploads[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if s.onPatch != nil {
			s.onPatch()
		}
		if s.failAt > 0 && len(s.patches)+1 == s.failAt {
			s.failAt = 0
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		offset, _ := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
		if offset != int64(len(u.data)) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		body, _ := io.ReadAll(r.Body)
		u.data = append(u.data, body...)
		s.patches = append(s.patches, offset)
		w.Header().Set("Upload-Offset", strconv.Itoa(len(u.data)))
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// metadataValue decodes one key of an Upload-Metadata header.
func metadataValue(header, key string) string {
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), " ", 2)
		if len(parts) == 2 && parts[0] == key {
			v, _ := base64.StdEncoding.DecodeString(parts[1])
			return string(v)
		}
	}
	return ""
}
