// Package fs implements the offline queue as one file per batch.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

const (
	entryPrefix = "batch-"
	entrySuffix = ".txt"
	tmpSuffix   = ".tmp"

	// maxFullRetries bounds how often an enqueue evicts and retries when
	// the filesystem reports it is full.
	maxFullRetries = 3
)

// QueueConfig configures a directory queue.
type QueueConfig struct {
	Dir string

	// MaxBytes is the high watermark. Zero disables eviction.
	MaxBytes int64

	// LowWatermark is the size eviction shrinks the queue to. Defaults to
	// three quarters of MaxBytes.
	LowWatermark int64
}

// Queue implements ports.Queue on a directory. Each entry is written to a
// temporary file, synced and renamed, so a crash leaves either the whole
// entry or nothing.
type Queue struct {
	dir    string
	high   int64
	low    int64
	clock  clock.Clock
	logger ports.Logger

	mu   sync.Mutex
	last domain.EntryID
}

// NewQueue opens the queue directory, creating it if needed. Leftover
// temporary files from an interrupted write are removed.
func NewQueue(cfg QueueConfig, clk clock.Clock, logger ports.Logger) (*Queue, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: queue dir is required", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	low := cfg.LowWatermark
	if low <= 0 || low > cfg.MaxBytes {
		low = cfg.MaxBytes / 4 * 3
	}
	q := &Queue{
		dir:    cfg.Dir,
		high:   cfg.MaxBytes,
		low:    low,
		clock:  clk,
		logger: logger,
	}

	if err := q.sweepTemp(); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	ids, err := q.scan()
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	if len(ids) > 0 {
		q.last = ids[len(ids)-1]
	}
	return q, nil
}

// Dir returns the queue directory.
func (q *Queue) Dir() string { return q.dir }

// Enqueue implements ports.Queue.
func (q *Queue) Enqueue(ctx context.Context, payload string) (domain.EntryID, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.StorageError{Op: "enqueue", Err: err}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := domain.NewEntryID(q.clock.Now())
	if id <= q.last {
		id = q.last + 1
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = writeAtomic(q.path(id), []byte(payload))
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.ENOSPC) || attempt >= maxFullRetries {
			return 0, &domain.StorageError{Op: "enqueue", ID: id, Err: err}
		}
		freed, evictErr := q.evictOldest(ctx, 1, 0)
		if evictErr != nil || freed == 0 {
			return 0, &domain.StorageError{Op: "enqueue", ID: id, Err: err}
		}
		q.logger.Warn("queue full, evicted oldest entry",
			ports.Bytes("freed", freed),
			ports.Int("attempt", attempt+1),
		)
	}
	q.last = id

	q.enforceWatermark(ctx, id)
	return id, nil
}

// List implements ports.Queue.
func (q *Queue) List(ctx context.Context) ([]domain.EntryID, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	ids, err := q.scan()
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return ids, nil
}

// Read implements ports.Queue.
func (q *Queue) Read(ctx context.Context, id domain.EntryID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.StorageError{Op: "read", ID: id, Err: err}
	}
	data, err := os.ReadFile(q.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &domain.StorageError{Op: "read", ID: id, Err: domain.ErrEntryNotFound}
		}
		return "", &domain.StorageError{Op: "read", ID: id, Err: err}
	}
	return string(data), nil
}

// Replace implements ports.Queue.
func (q *Queue) Replace(ctx context.Context, id domain.EntryID, payload string) error {
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "replace", ID: id, Err: err}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	path := q.path(id)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &domain.StorageError{Op: "replace", ID: id, Err: domain.ErrEntryNotFound}
		}
		return &domain.StorageError{Op: "replace", ID: id, Err: err}
	}
	if err := writeAtomic(path, []byte(payload)); err != nil {
		return &domain.StorageError{Op: "replace", ID: id, Err: err}
	}
	return nil
}

// Delete implements ports.Queue.
func (q *Queue) Delete(ctx context.Context, id domain.EntryID) error {
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "delete", ID: id, Err: err}
	}
	if err := os.Remove(q.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.StorageError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (q *Queue) path(id domain.EntryID) string {
	return filepath.Join(q.dir, entryPrefix+id.String()+entrySuffix)
}

// scan returns entry ids in FIFO order. Files that do not follow the entry
// naming scheme are ignored.
func (q *Queue) scan() ([]domain.EntryID, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, err
	}
	var ids []domain.EntryID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseEntryName(e.Name())
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (q *Queue) sweepTemp() error {
	matches, err := filepath.Glob(filepath.Join(q.dir, entryPrefix+"*"+tmpSuffix))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		q.logger.Warn("removed partial queue entry", ports.String("path", m))
	}
	return nil
}

func parseEntryName(name string) (domain.EntryID, bool) {
	if !strings.HasPrefix(name, entryPrefix) || !strings.HasSuffix(name, entrySuffix) {
		return 0, false
	}
	id, err := domain.ParseEntryID(strings.TrimSuffix(strings.TrimPrefix(name, entryPrefix), entrySuffix))
	if err != nil {
		return 0, false
	}
	return id, true
}

// writeAtomic writes data to path via a synced temporary file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	syncDir(filepath.Dir(path))
	return nil
}

// syncDir makes the rename durable. Errors are ignored: some filesystems
// do not support syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
