package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
)

// TestMinio_Integration requires a running MinIO instance and skips otherwise.
func TestMinio_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("minio client creation failed: %v", err)
	}
	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not available: %v", err)
	}

	bucket := "test-retrieval-datasets"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	for _, name := range []string{"shards/b.json.zstd", "shards/a.json.zstd"} {
		data := []byte(name)
		_, err := client.PutObject(ctx, bucket, "root/"+name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
		require.NoError(t, err)
	}

	store := NewMinio(client, bucket, "root")
	names, err := store.List(ctx, "shards")
	require.NoError(t, err)
	require.Equal(t, []string{"shards/a.json.zstd", "shards/b.json.zstd"}, names)

	rc, err := store.Open(ctx, "shards/a.json.zstd")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "shards/a.json.zstd", string(data))

	_, err = store.Open(ctx, "shards/missing")
	require.ErrorIs(t, err, ErrNotFound)
}
