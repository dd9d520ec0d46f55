// Package sqlite implements the offline queue as rows of a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// maxFullRetries bounds how often an enqueue evicts and retries when the
// database reports the disk is full.
const maxFullRetries = 3

// evictBatch is how many rows are considered per eviction round.
const evictBatch = 64

// QueueConfig configures a SQLite queue.
type QueueConfig struct {
	Path string

	// MaxBytes is the high watermark on stored payload bytes. Zero disables
	// eviction.
	MaxBytes int64

	// LowWatermark is the size eviction shrinks the queue to. Defaults to
	// three quarters of MaxBytes.
	LowWatermark int64
}

// Queue implements ports.Queue on a single SQLite file.
type Queue struct {
	dbPath string
	high   int64
	low    int64
	clock  clock.Clock
	logger ports.Logger

	mu   sync.Mutex
	last domain.EntryID

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the queue database.
func Open(ctx context.Context, cfg QueueConfig, clk clock.Clock, logger ports.Logger) (*Queue, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: queue database path is required", domain.ErrInvalidConfig)
	}
	low := cfg.LowWatermark
	if low <= 0 || low > cfg.MaxBytes {
		low = cfg.MaxBytes / 4 * 3
	}
	q := &Queue{
		dbPath: cfg.Path,
		high:   cfg.MaxBytes,
		low:    low,
		clock:  clk,
		logger: logger,
	}

	db, err := q.getDB()
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	var last int64
	if err := db.QueryRowContext(ctx, lastEntrySQL).Scan(&last); err != nil {
		_ = q.Close()
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	q.last = domain.EntryID(last)
	return q, nil
}

func (q *Queue) getDB() (*sql.DB, error) {
	q.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", q.dbPath, "_journal_mode=WAL&_synchronous=FULL"))
		if err != nil {
			q.dbErr = fmt.Errorf("opening connection: %w", err)
			return
		}
		// One writer keeps id assignment and eviction serialized.
		db.SetMaxOpenConns(1)

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			q.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		q.db = db
	})
	return q.db, q.dbErr
}

// Enqueue implements ports.Queue.
func (q *Queue) Enqueue(ctx context.Context, payload string) (domain.EntryID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := domain.NewEntryID(q.clock.Now())
	if id <= q.last {
		id = q.last + 1
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = q.insert(ctx, id, payload)
		if err == nil {
			break
		}
		if !isDiskFull(err) || attempt >= maxFullRetries {
			return 0, &domain.StorageError{Op: "enqueue", ID: id, Err: err}
		}
		freed, _, evictErr := q.evict(ctx, 1, 0)
		if evictErr != nil || freed == 0 {
			return 0, &domain.StorageError{Op: "enqueue", ID: id, Err: err}
		}
		q.logger.Warn("queue database full, evicted oldest entry",
			ports.Bytes("freed", freed),
			ports.Int("attempt", attempt+1),
		)
	}
	q.last = id

	q.enforceWatermark(ctx, id)
	return id, nil
}

func (q *Queue) insert(ctx context.Context, id domain.EntryID, payload string) (err error) {
	db, err := q.getDB()
	if err != nil {
		return err
	}
	stmt, err := db.PrepareContext(ctx, insertEntrySQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, int64(id), payload, len(payload)); err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// List implements ports.Queue.
func (q *Queue) List(ctx context.Context) (ids []domain.EntryID, err error) {
	db, err := q.getDB()
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	rows, err := db.QueryContext(ctx, listEntriesSQL)
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, &domain.StorageError{Op: "list", Err: err}
		}
		ids = append(ids, domain.EntryID(id))
	}
	if err = rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return ids, nil
}

// Read implements ports.Queue.
func (q *Queue) Read(ctx context.Context, id domain.EntryID) (string, error) {
	db, err := q.getDB()
	if err != nil {
		return "", &domain.StorageError{Op: "read", ID: id, Err: err}
	}
	var payload string
	err = db.QueryRowContext(ctx, readEntrySQL, int64(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.StorageError{Op: "read", ID: id, Err: domain.ErrEntryNotFound}
	}
	if err != nil {
		return "", &domain.StorageError{Op: "read", ID: id, Err: err}
	}
	return payload, nil
}

// Replace implements ports.Queue.
func (q *Queue) Replace(ctx context.Context, id domain.EntryID, payload string) error {
	db, err := q.getDB()
	if err != nil {
		return &domain.StorageError{Op: "replace", ID: id, Err: err}
	}
	res, err := db.ExecContext(ctx, replaceEntrySQL, payload, len(payload), int64(id))
	if err != nil {
		return &domain.StorageError{Op: "replace", ID: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "replace", ID: id, Err: err}
	}
	if n == 0 {
		return &domain.StorageError{Op: "replace", ID: id, Err: domain.ErrEntryNotFound}
	}
	return nil
}

// Delete implements ports.Queue.
func (q *Queue) Delete(ctx context.Context, id domain.EntryID) error {
	db, err := q.getDB()
	if err != nil {
		return &domain.StorageError{Op: "delete", ID: id, Err: err}
	}
	if _, err := db.ExecContext(ctx, deleteEntrySQL, int64(id)); err != nil {
		return &domain.StorageError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// Size returns the number of entries and their total payload bytes.
func (q *Queue) Size(ctx context.Context) (int, int64, error) {
	db, err := q.getDB()
	if err != nil {
		return 0, 0, err
	}
	var count int
	var total int64
	if err := db.QueryRowContext(ctx, totalSizeSQL).Scan(&count, &total); err != nil {
		return 0, 0, err
	}
	return count, total, nil
}

// Close closes the database.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		if q.db != nil {
			q.closeErr = q.db.Close()
		}
	})
	return q.closeErr
}

func (q *Queue) enforceWatermark(ctx context.Context, protect domain.EntryID) {
	if q.high <= 0 {
		return
	}
	_, size, err := q.Size(ctx)
	if err != nil {
		q.logger.Error("queue size check failed", ports.Err(err))
		return
	}
	if size <= q.high {
		return
	}

	var freed int64
	removed := 0
	for size > q.low && ctx.Err() == nil {
		n, count, err := q.evictUntil(ctx, size-q.low, protect)
		if err != nil {
			q.logger.Error("queue eviction failed", ports.Err(err))
			break
		}
		if count == 0 {
			break
		}
		size -= n
		freed += n
		removed += count
	}

	if removed > 0 {
		q.logger.Warn("queue over high watermark, evicted oldest entries",
			ports.Int("entries", removed),
			ports.Bytes("freed", freed),
			ports.Bytes("remaining", size),
		)
	}
}

// evictUntil removes the oldest rows until at least need bytes are freed or
// one round of candidates is exhausted.
func (q *Queue) evictUntil(ctx context.Context, need int64, protect domain.EntryID) (int64, int, error) {
	var freed int64
	removed := 0
	for freed < need {
		n, count, err := q.evict(ctx, 1, protect)
		if err != nil {
			return freed, removed, err
		}
		if count == 0 {
			break
		}
		freed += n
		removed += count
		if removed >= evictBatch {
			break
		}
	}
	return freed, removed, nil
}

// evict removes up to limit of the oldest rows other than protect.
func (q *Queue) evict(ctx context.Context, limit int, protect domain.EntryID) (freed int64, removed int, err error) {
	db, err := q.getDB()
	if err != nil {
		return 0, 0, err
	}
	rows, err := db.QueryContext(ctx, oldestSizesSQL, int64(protect), limit)
	if err != nil {
		return 0, 0, err
	}
	type victim struct {
		id   int64
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err = rows.Scan(&v.id, &v.size); err != nil {
			_ = rows.Close()
			return 0, 0, err
		}
		victims = append(victims, v)
	}
	if err = rows.Close(); err != nil {
		return 0, 0, err
	}

	for _, v := range victims {
		if _, err = db.ExecContext(ctx, deleteEntrySQL, v.id); err != nil {
			return freed, removed, err
		}
		freed += v.size
		removed++
	}
	return freed, removed, nil
}

func isDiskFull(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
