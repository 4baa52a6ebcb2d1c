package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
)

// MinIO archives artifacts to a MinIO or S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ Archiver = (*MinIO)(nil)

// NewMinIO creates an archiver writing to bucket. rootPrefix is prepended to
// all artifact names (e.g. "faceid/").
func NewMinIO(client *minio.Client, bucket, rootPrefix string) *MinIO {
	return &MinIO{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (m *MinIO) key(name string) string {
	return path.Join(m.prefix, name)
}

// Put implements Archiver.
func (m *MinIO) Put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// PutFile implements Archiver.
func (m *MinIO) PutFile(ctx context.Context, name, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = m.client.PutObject(ctx, m.bucket, m.key(name), f, info.Size(), minio.PutObjectOptions{})
	return err
}

// Get implements Archiver.
func (m *MinIO) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// List implements Archiver.
func (m *MinIO) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := m.key(prefix)

	var names []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, m.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}
