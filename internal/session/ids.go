package session

import "github.com/google/uuid"

// IDGenerator produces session ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time in logs. Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
