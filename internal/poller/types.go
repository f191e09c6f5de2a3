// internal/poller/types.go
package poller

import (
	"time"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Protocol limits for one request.
const (
	MaxReadWords  = 125
	MaxWriteWords = 123
)

// Result is produced by one poll cycle.
type Result struct {
	At time.Time

	// Snapshot is nil when the cycle failed.
	Snapshot *status.Snapshot

	// Previous is the snapshot Snapshot replaced in the store, nil on the
	// first success and on failure.
	Previous *status.Snapshot

	Err error // non-nil means the poll cycle failed
}
