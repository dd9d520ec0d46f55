package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntryID identifies a batch in the offline queue. It is the creation time in
// unix nanoseconds, so numeric order is FIFO order.
type EntryID int64

// NewEntryID derives an identifier from a creation time.
func NewEntryID(t time.Time) EntryID {
	return EntryID(t.UnixNano())
}

// Time returns the creation time embedded in the identifier.
func (id EntryID) Time() time.Time {
	return time.Unix(0, int64(id))
}

// String returns the zero-padded form used in file names.
func (id EntryID) String() string {
	return fmt.Sprintf("%019d", int64(id))
}

// ParseEntryID parses the zero-padded form produced by String.
func ParseEntryID(s string) (EntryID, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse entry id %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse entry id %q: negative", s)
	}
	return EntryID(n), nil
}

// OfflineEntry is a batch held in durable storage.
type OfflineEntry struct {
	ID      EntryID
	Payload string
}
