// Package uid generates identifiers: UUID v7 strings for correlation,
// companion and activation ids, snowflake numbers for push revisions.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates time-ordered numeric identifiers.
type NumberID interface {
	Generate() int64
}
