package config

import (
	"io"
	"time"
)

// TimeConfig reads integer keys as durations of a fixed unit.
type TimeConfig interface {
	// GetMillisecond reads the key as a number of milliseconds.
	GetMillisecond(key string) time.Duration
	// GetSecond reads the key as a number of seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads the key as a number of minutes.
	GetMinute(key string) time.Duration
}

// NumberConfig reads numeric keys. Missing or malformed keys yield zero.
type NumberConfig interface {
	GetInt(key string) int
	GetInt64(key string) int64
	GetFloat64(key string) float64
}

// Config is the read-only view of runtime configuration used by the app.
//
// Values may change at runtime when the backing file is reloaded, so callers
// that need a stable value should read it once at construction.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	GetBool(key string) bool
	GetString(key string) string

	// GetBinary decodes a base64 value. Invalid input yields nil.
	GetBinary(key string) []byte

	// GetArray reads a list, or a comma separated value, dropping empty items.
	GetArray(key string) []string
}
