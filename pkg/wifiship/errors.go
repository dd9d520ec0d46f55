package wifiship

import "github.com/bft-labs/wifiship/internal/domain"

// Errors returned by Wifiship. Check them with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrStorage         = domain.ErrStorage
	ErrEntryNotFound   = domain.ErrEntryNotFound
)
