package ports

import (
	"io"

	"github.com/bft-labs/wifiship/internal/domain"
)

// FixDecoder is a stateful, incremental sentence decoder. Bytes may split
// sentences anywhere; the decoder keeps partial input across calls.
type FixDecoder interface {
	// Feed consumes raw bytes and reports whether at least one complete
	// sentence was decoded.
	Feed(p []byte) bool

	// Fix returns the position state accumulated so far.
	Fix() domain.LocationFix
}

// FixSource is the raw byte stream from the GPS receiver. Reads must return
// within a bounded time; a read that times out returns (0, nil).
type FixSource = io.Reader
