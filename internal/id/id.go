// Package id generates time-sortable unique identifiers for sessions and
// journal records.
package id

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// The monotonic reader keeps ids generated within the same millisecond
// lexicographically increasing. It is not safe for concurrent use, hence
// the lock.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. Ids sort by creation time, which keeps
// the journal's indexes append-friendly.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
