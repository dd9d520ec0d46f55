package ports

import (
	"context"

	"github.com/bft-labs/wifiship/internal/domain"
)

// Scanner lists the wireless networks currently visible. An empty result is
// not an error.
type Scanner interface {
	Scan(ctx context.Context) ([]domain.Observation, error)
}
