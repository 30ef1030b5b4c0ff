package store

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewSessionID generates a globally unique, lexicographically sortable
// identifier for a session log.
func NewSessionID() string {
	return generateULID(time.Now())
}

// NewChatID generates the unique suffix appended to chat display names.
func NewChatID() string {
	return generateULID(time.Now())
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
