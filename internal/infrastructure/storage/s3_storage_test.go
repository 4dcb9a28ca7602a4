package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half a key pair returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{Bucket: "b", AccessKeyID: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("endpoint without scheme returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, &config.StorageConfig{Bucket: "b", Endpoint: "localhost:9000"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid storage endpoint")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3ObjectStorage(ctx, &config.StorageConfig{
			Bucket:          "afp-claims",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		}, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "afp-claims", s.Bucket())
	})
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(context.Background(), &config.StorageConfig{
		Bucket:          "b",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	assert.Error(t, s.Upload(context.Background(), "", []byte("x"), "text/csv"))
	assert.Error(t, s.Delete(context.Background(), ""))
}

// fakeS3 serves the handful of path-style S3 calls the storage makes
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+f.bucket), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
		fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>", f.bucket, prefix, len(keys))
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00.000Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, b.String())

	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(data)

	case r.Method == http.MethodPut && r.Header.Get("X-Amz-Copy-Source") != "":
		src, _ := url.PathUnescape(r.Header.Get("X-Amz-Copy-Source"))
		src = strings.TrimPrefix(strings.TrimPrefix(src, "/"), f.bucket+"/")
		f.objects[key] = f.objects[src]
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"etag"</ETag><LastModified>2026-01-01T00:00:00.000Z</LastModified></CopyObjectResult>`)

	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestS3ObjectStorage_RoundTrip(t *testing.T) {
	fake := &fakeS3{bucket: "afp-claims", objects: map[string][]byte{
		"raw/b.csv": []byte("b"),
		"raw/a.csv": []byte("aa"),
	}}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	s, err := NewS3ObjectStorage(ctx, &config.StorageConfig{
		Bucket:          "afp-claims",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "other/c.csv", []byte("c"), "text/csv"))
	fake.mu.Lock()
	_, uploaded := fake.objects["other/c.csv"]
	fake.mu.Unlock()
	assert.True(t, uploaded)

	objects, err := s.List(ctx, "raw/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "raw/a.csv", objects[0].Key)
	assert.Equal(t, int64(2), objects[0].Size)

	data, err := s.Download(ctx, "raw/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "aa", string(data))

	require.NoError(t, s.Move(ctx, "raw/a.csv", "processed/a.csv"))
	_, err = s.Download(ctx, "raw/a.csv")
	assert.ErrorIs(t, err, appcert.ErrObjectNotFound)
	data, err = s.Download(ctx, "processed/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "aa", string(data))
}
