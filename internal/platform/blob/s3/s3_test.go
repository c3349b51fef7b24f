package s3

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Bucket: "b"}, nil)
	assert.ErrorContains(t, err, "endpoint")

	_, err = New(Config{Endpoint: "localhost:9000"}, nil)
	assert.ErrorContains(t, err, "bucket")

	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "shares", Prefix: "fs"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.cfg.Region)
	assert.Equal(t, "fs/", s.cfg.Prefix)
	assert.Equal(t, "s3", s.Name())
}

func TestObjectKey(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "shares", Prefix: "fileshare/"}, nil)
	require.NoError(t, err)

	got, err := s.objectKey("uploads/2026/01/02/x-a.txt")
	require.NoError(t, err)
	assert.Equal(t, "fileshare/uploads/2026/01/02/x-a.txt", got)

	for _, bad := range []string{"", "/abs", "a/../b"} {
		_, err := s.objectKey(bad)
		assert.ErrorIs(t, err, blob.ErrInvalidKey, bad)
	}
}

func TestTranslate(t *testing.T) {
	notFound := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	assert.ErrorIs(t, translate("k", notFound), blob.ErrNotFound)

	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	err := translate("k", denied)
	assert.False(t, errors.Is(err, blob.ErrNotFound))
	assert.ErrorContains(t, err, "s3 get k")
}

func TestPing_UnreachableEndpoint(t *testing.T) {
	s, err := New(Config{Endpoint: "127.0.0.1:1", Bucket: "shares"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, s.Ping(ctx))
}

func TestDriverFromConfig(t *testing.T) {
	st, err := blob.New("s3", map[string]any{
		"s3": map[string]any{"endpoint": "minio:9000", "bucket": "shares", "use_ssl": true},
	}, nil)
	require.NoError(t, err)
	assert.True(t, st.(*Store).cfg.UseSSL)

	_, err = blob.New("s3", map[string]any{}, nil)
	assert.Error(t, err)
}
