package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// Fix gate defaults.
const (
	DefaultMinSatellites = 4
	DefaultFixPoll       = 200 * time.Millisecond
	fixReadBuffer        = 256
)

// FixGate waits a bounded time for a trustworthy position. Every byte read
// from the source is handed to the decoder, whatever the outcome, so partial
// sentences carry over to the next wait.
type FixGate struct {
	source  ports.FixSource
	decoder ports.FixDecoder
	clock   clock.Clock
	logger  ports.Logger

	minSatellites int
	poll          time.Duration
	buf           []byte
}

// NewFixGate creates a gate reading from source into decoder.
func NewFixGate(source ports.FixSource, decoder ports.FixDecoder, clk clock.Clock, minSatellites int, logger ports.Logger) *FixGate {
	if minSatellites <= 0 {
		minSatellites = DefaultMinSatellites
	}
	return &FixGate{
		source:        source,
		decoder:       decoder,
		clock:         clk,
		logger:        logger,
		minSatellites: minSatellites,
		poll:          DefaultFixPoll,
		buf:           make([]byte, fixReadBuffer),
	}
}

// Await returns an acceptable fix decoded within maxWait, or
// domain.ErrFixTimeout. A fix is acceptable when a sentence completed during
// this wait, the receiver reports it valid, at least the minimum number of
// satellites are used and the coordinates are plausible. Input that queued up
// between cycles is read in full before the fix is judged, so the position
// reflects the receiver's latest sentence rather than the oldest one buffered.
func (g *FixGate) Await(ctx context.Context, maxWait time.Duration) (domain.LocationFix, error) {
	deadline := g.clock.Now().Add(maxWait)
	fresh := false
	last := domain.LocationFix{}

	for {
		if err := ctx.Err(); err != nil {
			return domain.LocationFix{}, err
		}
		remaining := deadline.Sub(g.clock.Now())
		if remaining <= 0 {
			if fresh && g.acceptable(last) {
				return last, nil
			}
			g.logger.Debug("no usable fix before deadline",
				ports.Int("satellites", last.Satellites),
				ports.Bool("valid", last.Valid),
				ports.Duration("waited", maxWait),
			)
			return domain.LocationFix{}, domain.ErrFixTimeout
		}

		n, err := g.source.Read(g.buf)
		if n > 0 {
			if g.decoder.Feed(g.buf[:n]) {
				fresh = true
			}
			last = g.decoder.Fix()
		}
		// A full buffer means more backlog may be waiting.
		if n == len(g.buf) && err == nil {
			continue
		}
		if fresh && g.acceptable(last) {
			return last, nil
		}

		switch {
		case err != nil && !errors.Is(err, io.EOF):
			g.logger.Warn("fix source read failed", ports.Err(err))
		case n > 0 && err == nil:
			continue
		}

		// Nothing buffered right now: wait for more input instead of spinning.
		wait := g.poll
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return domain.LocationFix{}, ctx.Err()
		case <-g.clock.After(wait):
		}
	}
}

func (g *FixGate) acceptable(fix domain.LocationFix) bool {
	return fix.Valid && fix.Satellites >= g.minSatellites && fix.Plausible()
}
