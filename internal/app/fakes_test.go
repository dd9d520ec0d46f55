package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
	"github.com/bft-labs/wifiship/pkg/log"
)

func quietLogger() ports.Logger { return log.NewNoopLogger() }

// lineDecoder decodes "lat lon sats valid\n" lines, keeping partial input
// between Feed calls like a real sentence decoder.
type lineDecoder struct {
	buf []byte
	fix domain.LocationFix
}

func (d *lineDecoder) Feed(p []byte) bool {
	d.buf = append(d.buf, p...)
	complete := false
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return complete
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]

		var f domain.LocationFix
		if _, err := fmt.Sscanf(line, "%f %f %d %t", &f.Latitude, &f.Longitude, &f.Satellites, &f.Valid); err == nil {
			d.fix = f
			complete = true
		}
	}
}

func (d *lineDecoder) Fix() domain.LocationFix { return d.fix }

// chunkSource returns its chunks one per Read, then io.EOF.
type chunkSource struct {
	chunks []string
}

func (s *chunkSource) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if s.chunks[0] == "" {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

// tickSource emits line on every other Read and nothing in between, like a
// receiver reporting once per second behind a read timeout.
type tickSource struct {
	mu     sync.Mutex
	line   string
	toggle bool
}

func (s *tickSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggle = !s.toggle
	if !s.toggle {
		return 0, nil
	}
	return copy(p, s.line), nil
}

func (s *tickSource) set(line string) {
	s.mu.Lock()
	s.line = line
	s.mu.Unlock()
}

type fakeScanner struct {
	observations []domain.Observation
	err          error
	calls        int
}

func (s *fakeScanner) Scan(ctx context.Context) ([]domain.Observation, error) {
	s.calls++
	return s.observations, s.err
}

type fakeLink struct{ up bool }

func (l *fakeLink) Up(ctx context.Context) bool { return l.up }

// fakeDeliverer returns scripted outcomes in order, then success.
type fakeDeliverer struct {
	outcomes []domain.Outcome
	sent     []string
}

func (d *fakeDeliverer) Deliver(ctx context.Context, batch domain.Batch) domain.Outcome {
	d.sent = append(d.sent, batch.Text())
	if len(d.outcomes) == 0 {
		return domain.Succeeded(200)
	}
	out := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	return out
}

// memQueue is an in-memory ports.Queue with monotonic ids.
type memQueue struct {
	clock      clock.Clock
	entries    map[domain.EntryID]string
	last       domain.EntryID
	enqueueErr error
	listErr    error
	deletes    int
}

func newMemQueue(clk clock.Clock) *memQueue {
	return &memQueue{clock: clk, entries: map[domain.EntryID]string{}}
}

func (q *memQueue) Enqueue(ctx context.Context, payload string) (domain.EntryID, error) {
	if q.enqueueErr != nil {
		return 0, &domain.StorageError{Op: "enqueue", Err: q.enqueueErr}
	}
	id := domain.NewEntryID(q.clock.Now())
	if id <= q.last {
		id = q.last + 1
	}
	q.last = id
	q.entries[id] = payload
	return id, nil
}

func (q *memQueue) List(ctx context.Context) ([]domain.EntryID, error) {
	if q.listErr != nil {
		return nil, &domain.StorageError{Op: "list", Err: q.listErr}
	}
	ids := make([]domain.EntryID, 0, len(q.entries))
	for id := range q.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (q *memQueue) Read(ctx context.Context, id domain.EntryID) (string, error) {
	p, ok := q.entries[id]
	if !ok {
		return "", &domain.StorageError{Op: "read", ID: id, Err: domain.ErrEntryNotFound}
	}
	return p, nil
}

func (q *memQueue) Replace(ctx context.Context, id domain.EntryID, payload string) error {
	if _, ok := q.entries[id]; !ok {
		return &domain.StorageError{Op: "replace", ID: id, Err: domain.ErrEntryNotFound}
	}
	q.entries[id] = payload
	return nil
}

func (q *memQueue) Delete(ctx context.Context, id domain.EntryID) error {
	q.deletes++
	delete(q.entries, id)
	return nil
}

func (q *memQueue) payloads() []string {
	ids := make([]domain.EntryID, 0, len(q.entries))
	for id := range q.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = q.entries[id]
	}
	return out
}

type fakeIndicator struct {
	blinks int
	on     bool
}

func (i *fakeIndicator) Set(on bool) { i.on = on }
func (i *fakeIndicator) Blink()      { i.blinks++ }

type recordingEmitter struct {
	reports    []CycleReport
	deliveries []DeliveryEvent
	onCycle    func(CycleReport)
}

func (e *recordingEmitter) OnCycle(r CycleReport) {
	e.reports = append(e.reports, r)
	if e.onCycle != nil {
		e.onCycle(r)
	}
}

func (e *recordingEmitter) OnDelivery(ev DeliveryEvent) {
	e.deliveries = append(e.deliveries, ev)
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
