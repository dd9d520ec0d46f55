package ports

import (
	"context"

	"github.com/bft-labs/wifiship/internal/domain"
)

// Deliverer performs exactly one upload attempt of an already bounded batch.
// It never retries and never returns an error: every result, including
// transport failures, is expressed as a domain.Outcome.
type Deliverer interface {
	Deliver(ctx context.Context, batch domain.Batch) domain.Outcome
}
