//go:build integration

package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMinio(t *testing.T) MinioConfig {
	t.Helper()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image: "minio/minio:latest",
		Cmd:   []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "casedesk",
			"MINIO_ROOT_PASSWORD": "casedesk-secret",
		},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	return MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "casedesk",
		SecretKey: "casedesk-secret",
		Bucket:    "attachments-test",
	}
}

func TestMinioStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := startMinio(t)
	ctx := context.Background()

	store, err := NewMinioStore(ctx, cfg)
	require.NoError(t, err)

	// A second connect finds the existing bucket.
	_, err = NewMinioStore(ctx, cfg)
	require.NoError(t, err)

	content := []byte("%PDF-1.7 inspection scan")
	key, written, err := store.Put(ctx, bytes.NewReader(content), ObjectInfo{
		FileName:    "Scan.PDF",
		ContentType: "application/pdf",
		Size:        int64(len(content)),
	})
	require.NoError(t, err)
	assert.True(t, ValidKey(key))
	assert.Equal(t, int64(len(content)), written)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), ErrObjectNotFound)
}

func TestMinioStore_UnknownSize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store, err := NewMinioStore(context.Background(), startMinio(t))
	require.NoError(t, err)

	key, written, err := store.Put(context.Background(), bytes.NewBufferString("streamed"), ObjectInfo{
		FileName: "notes.txt",
		Size:     -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len("streamed")), written)
	require.NoError(t, store.Delete(context.Background(), key))
}
