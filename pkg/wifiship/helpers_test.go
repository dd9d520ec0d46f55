package wifiship_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/wifiship/pkg/log"
	"github.com/bft-labs/wifiship/pkg/wifiship"
)

const ggaFix = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"

// gpsStream repeats one sentence forever, like a receiver holding a fix.
type gpsStream struct {
	mu      sync.Mutex
	line    string
	pending string
}

func (s *gpsStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		s.pending = s.line
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// silentGPS never produces a byte, like a receiver without a fix behind a
// read timeout.
type silentGPS struct{}

func (silentGPS) Read([]byte) (int, error) { return 0, nil }

type staticScanner struct {
	mu    sync.Mutex
	obs   []wifiship.Observation
	calls int
}

func (s *staticScanner) Scan(context.Context) ([]wifiship.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.obs, nil
}

func (s *staticScanner) scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixedLink bool

func (l fixedLink) Up(context.Context) bool { return bool(l) }

type recordingDeliverer struct {
	mu      sync.Mutex
	outcome wifiship.Outcome
	batches []wifiship.Batch
}

func (d *recordingDeliverer) Deliver(_ context.Context, b wifiship.Batch) wifiship.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, b)
	return d.outcome
}

func (d *recordingDeliverer) delivered() []wifiship.Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]wifiship.Batch(nil), d.batches...)
}

// memQueue is an in-memory wifiship.Queue.
type memQueue struct {
	mu      sync.Mutex
	next    wifiship.EntryID
	entries map[wifiship.EntryID]string
}

func newMemQueue() *memQueue {
	return &memQueue{entries: make(map[wifiship.EntryID]string)}
}

func (q *memQueue) Enqueue(_ context.Context, payload string) (wifiship.EntryID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.entries[q.next] = payload
	return q.next, nil
}

func (q *memQueue) List(context.Context) ([]wifiship.EntryID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]wifiship.EntryID, 0, len(q.entries))
	for id := range q.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (q *memQueue) Read(_ context.Context, id wifiship.EntryID) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.entries[id]
	if !ok {
		return "", wifiship.ErrEntryNotFound
	}
	return p, nil
}

func (q *memQueue) Replace(_ context.Context, id wifiship.EntryID, payload string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; !ok {
		return wifiship.ErrEntryNotFound
	}
	q.entries[id] = payload
	return nil
}

func (q *memQueue) Delete(_ context.Context, id wifiship.EntryID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, id)
	return nil
}

func (q *memQueue) payloads() []string {
	ids, _ := q.List(context.Background())
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, q.entries[id])
	}
	return out
}

type recordingIndicator struct {
	mu     sync.Mutex
	sets   []bool
	blinks int
}

func (i *recordingIndicator) Set(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sets = append(i.sets, on)
}

func (i *recordingIndicator) Blink() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.blinks++
}

// harness bundles the fakes injected into an instance under test.
type harness struct {
	gps       *gpsStream
	scanner   *staticScanner
	deliverer *recordingDeliverer
	queue     *memQueue
	indicator *recordingIndicator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		gps: &gpsStream{line: ggaFix},
		scanner: &staticScanner{obs: []wifiship.Observation{
			{SSID: "cafe", BSSID: mustMAC(t, "aa:bb:cc:dd:ee:01"), RSSI: -61, Auth: wifiship.AuthWPA2PSK},
			{SSID: "", BSSID: mustMAC(t, "aa:bb:cc:dd:ee:02"), RSSI: -80, Auth: wifiship.AuthOpen},
		}},
		deliverer: &recordingDeliverer{outcome: wifiship.Succeeded(200)},
		queue:     newMemQueue(),
		indicator: &recordingIndicator{},
	}
}

// options wires every fake; link is up unless overridden by a later option.
func (h *harness) options(extra ...wifiship.Option) []wifiship.Option {
	opts := []wifiship.Option{
		wifiship.WithLogger(testLogger()),
		wifiship.WithFixSource(h.gps),
		wifiship.WithScanner(h.scanner),
		wifiship.WithLink(fixedLink(true)),
		wifiship.WithDeliverer(h.deliverer),
		wifiship.WithQueue(h.queue),
		wifiship.WithIndicator(h.indicator),
	}
	return append(opts, extra...)
}

func mustMAC(t *testing.T, s string) wifiship.MAC {
	t.Helper()
	m, err := wifiship.ParseMAC(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testLogger() wifiship.Logger {
	return log.NewNoopLogger()
}

// testConfig flushes as soon as more than one record is pending and waits
// an hour between cycles, so a started instance runs exactly one cycle
// before it is stopped.
func testConfig() wifiship.Config {
	cfg := wifiship.DefaultConfig()
	cfg.Username = "tester"
	cfg.CyclePeriod = time.Hour
	cfg.FixTimeout = time.Second
	cfg.FlushThreshold = 1
	return cfg
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
