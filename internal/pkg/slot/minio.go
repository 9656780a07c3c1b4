package slot

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions configures the MinIO slot.
type MinIOOptions struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	UseSSL       bool
	Bucket       string
}

// MinIO stores each slot as one object in a bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO constructs a MinIO slot store.
func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinIO{client: client, bucket: opts.Bucket}, nil
}

func (m *MinIO) Close() error { return nil }

func (m *MinIO) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyRequired
	}

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("slot: minio put: %w", err)
	}
	return nil
}

func (m *MinIO) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr("get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.mapErr("get", err)
	}
	return data, nil
}

func (m *MinIO) version(ctx context.Context, key string) (string, error) {
	stat, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return "", m.mapErr("stat", err)
	}
	return stat.ETag, nil
}

func (m *MinIO) Watch(ctx context.Context, key string, handler Handler, opts ...WatchOption) error {
	if key == "" {
		return ErrKeyRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return pollWatch(ctx, m, key, handler, newWatchOptions(opts...))
}

func (m *MinIO) mapErr(op string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrEmpty
	}
	return fmt.Errorf("slot: minio %s: %w", op, err)
}
