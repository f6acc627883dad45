package artifacts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	ref := Ref([]byte("deed scan"))
	digest, err := ParseRef(ref)
	require.NoError(t, err)
	assert.Len(t, digest, 64)

	for _, bad := range []string{"", "sha256:", "md5:" + digest, "sha256:" + digest[:10], "sha256:" + strings.Repeat("z", 64)} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, bad)
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	data := []byte("survey report, parcel PR-17")

	ref, err := s.Store(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, Ref(data), ref)

	again, err := s.Store(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, s.Delete(ctx, ref))
	ok, err = s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "sha256:nothex")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = s.Store(context.Background(), []byte("a"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".blob"))
}

// fakeS3 serves the handful of path-style object calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.URL.Path
	switch r.Method {
	case http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(data)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store_AgainstCompatibleEndpoint(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3Store(context.Background(), S3StoreConfig{
		Bucket:          "evidence",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		Prefix:          "disputes/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	exerciseStore(t, s)

	ref, err := s.Store(context.Background(), []byte("x"))
	require.NoError(t, err)
	digest, _ := ParseRef(ref)
	fake.mu.Lock()
	_, ok := fake.objects["/evidence/disputes/"+digest+".blob"]
	fake.mu.Unlock()
	assert.True(t, ok)
}

func TestNewStore_DefaultsToFileStore(t *testing.T) {
	tmp := t.TempDir()
	s, err := NewStore(context.Background(), Config{DataDir: tmp})
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, filepath.Join(tmp, "artifacts"), fs.baseDir)
}

func TestNewStoreFromEnv(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("ARTIFACT_STORAGE_TYPE", "fs")
	t.Setenv("DATA_DIR", tmp)

	s, err := NewStoreFromEnv(context.Background())
	require.NoError(t, err)
	_, ok := s.(*FileStore)
	assert.True(t, ok)
}

func TestNewStore_Errors(t *testing.T) {
	_, err := NewStore(context.Background(), Config{Type: StoreTypeS3})
	assert.ErrorContains(t, err, "ARTIFACT_S3_BUCKET")

	_, err = NewStore(context.Background(), Config{Type: StoreTypeGCS})
	assert.ErrorContains(t, err, "ARTIFACT_GCS_BUCKET")

	_, err = NewStore(context.Background(), Config{Type: "ftp"})
	assert.ErrorContains(t, err, "unsupported")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_TYPE", "s3")
	t.Setenv("ARTIFACT_S3_BUCKET", "b")
	t.Setenv("ARTIFACT_S3_REGION", "")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg := ConfigFromEnv()
	assert.Equal(t, StoreTypeS3, cfg.Type)
	assert.Equal(t, "b", cfg.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
}
