package fs

import (
	"context"
	"errors"
	"os"

	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// Size returns the number of entries and their total size in bytes.
func (q *Queue) Size() (int, int64, error) {
	ids, err := q.scan()
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, id := range ids {
		info, err := os.Stat(q.path(id))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, 0, err
		}
		total += info.Size()
	}
	return len(ids), total, nil
}

// enforceWatermark removes the oldest entries once the queue grows past the
// high watermark, until it is back under the low watermark. The entry just
// written is never removed.
func (q *Queue) enforceWatermark(ctx context.Context, protect domain.EntryID) {
	if q.high <= 0 {
		return
	}
	_, size, err := q.Size()
	if err != nil {
		q.logger.Error("queue size check failed", ports.Err(err))
		return
	}
	if size <= q.high {
		return
	}

	ids, err := q.scan()
	if err != nil {
		q.logger.Error("queue eviction: list failed", ports.Err(err))
		return
	}

	var freed int64
	removed := 0
	for _, id := range ids {
		if ctx.Err() != nil || size <= q.low {
			break
		}
		if id == protect {
			continue
		}
		n, err := q.remove(id)
		if err != nil {
			q.logger.Error("queue eviction: remove failed", ports.String("entry", id.String()), ports.Err(err))
			continue
		}
		size -= n
		freed += n
		removed++
	}

	if removed > 0 {
		q.logger.Warn("queue over high watermark, evicted oldest entries",
			ports.Int("entries", removed),
			ports.Bytes("freed", freed),
			ports.Bytes("remaining", size),
		)
	}
}

// evictOldest removes up to n of the oldest entries, skipping protect, and
// returns the bytes freed.
func (q *Queue) evictOldest(ctx context.Context, n int, protect domain.EntryID) (int64, error) {
	ids, err := q.scan()
	if err != nil {
		return 0, err
	}
	var freed int64
	for _, id := range ids {
		if n == 0 || ctx.Err() != nil {
			break
		}
		if id == protect {
			continue
		}
		size, err := q.remove(id)
		if err != nil {
			return freed, err
		}
		freed += size
		n--
	}
	return freed, nil
}

func (q *Queue) remove(id domain.EntryID) (int64, error) {
	path := q.path(id)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	return info.Size(), nil
}
