package app

import (
	"time"

	"github.com/bft-labs/wifiship/internal/domain"
)

// Accumulator is the in-memory ordered buffer of formatted records. It is
// owned by the Agent and touched only from the cycle loop.
type Accumulator struct {
	records    []domain.Record
	lastFlush  time.Time
	maxRecords int
}

// NewAccumulator creates an empty accumulator whose flush clock starts at
// start. maxRecords caps memory use; zero means unbounded.
func NewAccumulator(maxRecords int, start time.Time) *Accumulator {
	return &Accumulator{
		records:    make([]domain.Record, 0, 64),
		lastFlush:  start,
		maxRecords: maxRecords,
	}
}

// Append adds records in order. When the cap is exceeded the oldest records
// are dropped and their count returned.
func (a *Accumulator) Append(records ...domain.Record) int {
	a.records = append(a.records, records...)
	if a.maxRecords <= 0 || len(a.records) <= a.maxRecords {
		return 0
	}
	dropped := len(a.records) - a.maxRecords
	a.records = append(a.records[:0], a.records[dropped:]...)
	return dropped
}

// Snapshot returns the current content as a batch. The batch owns its own
// copy of the records.
func (a *Accumulator) Snapshot(now time.Time) domain.Batch {
	return domain.NewBatch(a.records, now)
}

// Reset clears the content. Only call it once the snapshot has been
// delivered or persisted.
func (a *Accumulator) Reset() {
	a.records = a.records[:0]
}

// MarkFlushed advances the last flush time.
func (a *Accumulator) MarkFlushed(t time.Time) {
	a.lastFlush = t
}

// Len returns the number of accumulated records.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// LastFlush returns the time of the last completed flush.
func (a *Accumulator) LastFlush() time.Time {
	return a.lastFlush
}

// FlushPolicy decides whether the accumulator must be flushed.
type FlushPolicy struct {
	Interval  time.Duration
	Threshold int
}

// ShouldFlush is true when the interval has elapsed since the last flush or
// the record count exceeds the threshold.
func (p FlushPolicy) ShouldFlush(acc *Accumulator, now time.Time) bool {
	if now.Sub(acc.LastFlush()) >= p.Interval {
		return true
	}
	return p.Threshold > 0 && acc.Len() > p.Threshold
}
