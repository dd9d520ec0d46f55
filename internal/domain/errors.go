package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the wifiship domain.
// These errors can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("wifiship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("wifiship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("wifiship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("wifiship: invalid configuration")

	// ErrFixTimeout is returned when no trustworthy fix arrives within the wait.
	ErrFixTimeout = errors.New("wifiship: fix timeout")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("wifiship: storage failure")

	// ErrEntryNotFound is returned by queue reads of an id that does not exist.
	ErrEntryNotFound = errors.New("wifiship: queue entry not found")
)

// StorageError reports a failed durable write, read or delete.
type StorageError struct {
	Op  string
	ID  EntryID
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
