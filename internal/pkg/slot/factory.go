package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// DriverRedis selects the redis backend.
	DriverRedis = "redis"
	// DriverS3 selects the AWS S3 backend.
	DriverS3 = "s3"
	// DriverGCS selects the Google Cloud Storage backend.
	DriverGCS = "gcs"
	// DriverMinIO selects the MinIO backend.
	DriverMinIO = "minio"
	// DriverMemory selects the in-process backend.
	DriverMemory = "memory"
)

var (
	// ErrUnknownDriver indicates an unsupported slot driver.
	ErrUnknownDriver = errors.New("slot: unknown driver")
	// ErrRedisClientRequired is returned when the redis driver has no client.
	ErrRedisClientRequired = errors.New("slot: redis client is required")
)

// FactoryOptions groups configuration for slot drivers.
type FactoryOptions struct {
	RedisClient *redis.Client
	Redis       RedisOptions
	S3          S3Options
	GCS         GCSOptions
	MinIO       MinIOOptions
	// Memory is reused when set, so that both roles of one process share it.
	Memory *Memory
}

// NewFromDriver constructs a Slot implementation by driver name.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverRedis:
		if opts.RedisClient == nil {
			return nil, ErrRedisClientRequired
		}
		return NewRedis(opts.RedisClient, opts.Redis), nil
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverGCS:
		return NewGCS(ctx, opts.GCS)
	case DriverMinIO:
		return NewMinIO(opts.MinIO)
	case DriverMemory:
		if opts.Memory != nil {
			return opts.Memory, nil
		}
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
