package app

import (
	"sort"

	"github.com/bft-labs/wifiship/internal/domain"
)

// Bounder trims batches to the endpoint's payload ceiling.
type Bounder struct {
	MaxBytes int
}

// Bound returns the largest prefix of batch whose envelope fits MaxBytes and
// the disjoint remainder. A batch that already fits is returned unchanged
// with an empty overflow. A non-positive MaxBytes disables bounding.
func (b Bounder) Bound(batch domain.Batch) (bounded, overflow domain.Batch) {
	if b.MaxBytes <= 0 || domain.EnvelopeSize(batch) <= b.MaxBytes {
		return batch, domain.Batch{CreatedAt: batch.CreatedAt}
	}

	// Envelope size grows with every record, so the fitting prefixes form a
	// contiguous range starting at zero.
	n := sort.Search(batch.Len()+1, func(i int) bool {
		return domain.EnvelopeSize(batch.Prefix(i)) > b.MaxBytes
	}) - 1
	if n < 0 {
		n = 0
	}
	return batch.Prefix(n), batch.Suffix(n)
}
