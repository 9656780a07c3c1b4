package slot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSOptions configures the GCS slot.
type GCSOptions struct {
	Bucket        string
	ClientOptions []option.ClientOption
}

// GCS stores each slot as one object in a bucket, versioned by generation.
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS constructs a GCS slot store.
func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	client, err := gcs.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	return &GCS{client: client, bucket: opts.Bucket}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyRequired
	}

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(value); err != nil {
		return errors.Join(fmt.Errorf("slot: gcs write: %w", err), w.Close())
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("slot: gcs put: %w", err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, g.mapErr("get", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("slot: gcs read: %w", err)
	}
	return data, nil
}

func (g *GCS) version(ctx context.Context, key string) (string, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return "", g.mapErr("attrs", err)
	}
	return strconv.FormatInt(attrs.Generation, 10), nil
}

func (g *GCS) Watch(ctx context.Context, key string, handler Handler, opts ...WatchOption) error {
	if key == "" {
		return ErrKeyRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return pollWatch(ctx, g, key, handler, newWatchOptions(opts...))
}

func (g *GCS) mapErr(op string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrEmpty
	}
	return fmt.Errorf("slot: gcs %s: %w", op, err)
}
