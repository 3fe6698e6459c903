package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/catalog/internal/db"
)

func TestItemKey(t *testing.T) {
	k1, k2 := ItemKey(42), ItemKey(42)
	require.Regexp(t, regexp.MustCompile(`^items/42/[0-9a-f-]{36}\.jpg$`), k1)
	require.NotEqual(t, k1, k2)
}

func TestDBStore(t *testing.T) {
	s := NewDBStore(db.NewTestDB(t))
	ctx := context.Background()

	_, _, err := s.Get(ctx, "items/1/a.jpg")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "items/1/a.jpg", []byte("jpeg"), "image/jpeg"))
	data, mime, err := s.Get(ctx, "items/1/a.jpg")
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg"), data)
	require.Equal(t, "image/jpeg", mime)

	require.NoError(t, s.Delete(ctx, "items/1/a.jpg"))
	_, _, err = s.Get(ctx, "items/1/a.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}

// fakeS3 answers path-style object requests for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	methods []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, r.Method+" "+r.URL.Path)

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(body)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	s, err := NewS3Store(ctx, S3Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "catalog",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "items/1/a.jpg", []byte("jpeg"), "image/jpeg"))

	_, mime, err := s.Get(ctx, "items/1/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mime)

	require.NoError(t, s.Delete(ctx, "items/1/a.jpg"))

	_, _, err = s.Get(ctx, "items/1/a.jpg")
	require.ErrorIs(t, err, ErrNotFound)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []string{
		"PUT /catalog/items/1/a.jpg",
		"GET /catalog/items/1/a.jpg",
		"DELETE /catalog/items/1/a.jpg",
		"GET /catalog/items/1/a.jpg",
	}, fake.methods)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	require.Error(t, err)
}
