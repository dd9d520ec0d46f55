package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
)

const goodFix = "20.123456 -100.654321 7 true\n"

type harness struct {
	clock     *clock.FakeClock
	source    *tickSource
	scanner   *fakeScanner
	link      *fakeLink
	deliverer *fakeDeliverer
	queue     *memQueue
	indicator *fakeIndicator
	emitter   *recordingEmitter
	agent     *Agent
}

func testConfig() AgentConfig {
	return AgentConfig{
		Tunables: Tunables{
			CyclePeriod:     35 * time.Second,
			FixTimeout:      30 * time.Second,
			FixPolicy:       domain.FixPolicyClean,
			FlushInterval:   120 * time.Second,
			FlushThreshold:  80,
			MaxPayloadBytes: 1000,
			OverflowPolicy:  domain.OverflowDrop,
		},
		MaxPendingRecords: 500,
	}
}

func newHarness(cfg AgentConfig) *harness {
	h := &harness{
		clock:     clock.Fake(epoch),
		source:    &tickSource{line: goodFix},
		scanner:   &fakeScanner{},
		link:      &fakeLink{up: true},
		deliverer: &fakeDeliverer{},
		indicator: &fakeIndicator{},
		emitter:   &recordingEmitter{},
	}
	h.queue = newMemQueue(h.clock)
	h.agent = NewAgent(cfg, Deps{
		Gate:      NewFixGate(h.source, &lineDecoder{}, h.clock, 4, quietLogger()),
		Scanner:   h.scanner,
		Link:      h.link,
		Deliverer: h.deliverer,
		Queue:     h.queue,
		Indicator: h.indicator,
		Clock:     h.clock,
		Logger:    quietLogger(),
		Emitter:   h.emitter,
	})
	return h
}

func observations(n int) []domain.Observation {
	out := make([]domain.Observation, n)
	for i := range out {
		out[i] = domain.Observation{
			SSID:  fmt.Sprintf("net-%d", i),
			BSSID: domain.MAC{0xde, 0xad, 0xbe, 0xef, 0x00, byte(i)},
			RSSI:  -40 - i,
			Auth:  domain.AuthWPA2PSK,
		}
	}
	return out
}

func path(states ...domain.CycleState) []domain.CycleState { return states }

func TestAgent_NoLinkPersistsBatch(t *testing.T) {
	h := newHarness(testConfig())
	h.link.up = false
	h.scanner.observations = observations(3)
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(context.Background())

	want := path(domain.CycleAwaitFix, domain.CycleScan, domain.CycleAccumulate,
		domain.CycleEvaluateFlush, domain.CyclePersist, domain.CycleIdle)
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	if !r.Persisted || !r.LinkDown {
		t.Errorf("report = %+v", r)
	}

	payloads := h.queue.payloads()
	if len(payloads) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(payloads))
	}
	lines := strings.Split(strings.TrimSuffix(payloads[0], "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("entry has %d records, want 3", len(lines))
	}
	if lines[0] != "net-0,WPA2-PSK,20.123456,-100.654321,-40,DE:AD:BE:EF:00:00" {
		t.Errorf("record 0 = %q", lines[0])
	}
	if h.agent.Pending() != 0 {
		t.Errorf("accumulator holds %d records after persist", h.agent.Pending())
	}
	if len(h.deliverer.sent) != 0 {
		t.Errorf("delivery attempted without a link")
	}
}

func TestAgent_DrainsBacklogBeforeCurrent(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()

	first, _ := h.queue.Enqueue(ctx, "old-1,Open,1.000000,1.000000,-1,00:00:00:00:00:01\n")
	h.clock.Advance(time.Second)
	second, _ := h.queue.Enqueue(ctx, "old-2,Open,1.000000,1.000000,-1,00:00:00:00:00:02\n")
	if first >= second {
		t.Fatalf("queue ids not increasing: %v %v", first, second)
	}

	h.scanner.observations = observations(2)
	h.clock.Advance(2 * time.Minute)
	r := h.agent.RunCycle(ctx)

	want := path(domain.CycleAwaitFix, domain.CycleScan, domain.CycleAccumulate,
		domain.CycleEvaluateFlush, domain.CycleDrainQueue, domain.CycleDeliverCurrent, domain.CycleIdle)
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	if len(h.deliverer.sent) != 3 {
		t.Fatalf("sent %d batches, want 3", len(h.deliverer.sent))
	}
	if !strings.HasPrefix(h.deliverer.sent[0], "old-1") || !strings.HasPrefix(h.deliverer.sent[1], "old-2") {
		t.Errorf("backlog not replayed oldest first: %q", h.deliverer.sent[:2])
	}
	if !strings.HasPrefix(h.deliverer.sent[2], "net-0") {
		t.Errorf("current batch not sent last: %q", h.deliverer.sent[2])
	}
	if n := len(h.queue.payloads()); n != 0 {
		t.Errorf("queue has %d entries, want 0", n)
	}
	if r.Drained != 2 || !r.Delivered {
		t.Errorf("report = %+v", r)
	}
	if len(h.emitter.deliveries) != 3 || !h.emitter.deliveries[0].Replay || h.emitter.deliveries[2].Replay {
		t.Errorf("delivery events = %+v", h.emitter.deliveries)
	}
}

func TestAgent_FixTimeoutLeavesStateUntouched(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	h.scanner.observations = observations(4)

	// First cycle accumulates without flushing.
	h.agent.RunCycle(ctx)
	if h.agent.Pending() != 4 {
		t.Fatalf("Pending() = %d, want 4", h.agent.Pending())
	}
	_, _ = h.queue.Enqueue(ctx, "queued\n")

	h.source.set("0 0 0 false\n")
	h.clock.Advance(5 * time.Minute)
	start := h.clock.Now()
	r := h.agent.RunCycle(ctx)

	if !r.FixTimedOut {
		t.Errorf("FixTimedOut = false")
	}
	if want := path(domain.CycleAwaitFix, domain.CycleIdle); !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	if h.clock.Now().Sub(start) < 30*time.Second {
		t.Errorf("gate gave up after %v", h.clock.Now().Sub(start))
	}
	if h.scanner.calls != 1 {
		t.Errorf("scanner called %d times, want 1", h.scanner.calls)
	}
	if h.agent.Pending() != 4 {
		t.Errorf("accumulator changed: %d", h.agent.Pending())
	}
	if p := h.queue.payloads(); len(p) != 1 || p[0] != "queued\n" {
		t.Errorf("queue changed: %q", p)
	}
	if len(h.deliverer.sent) != 0 {
		t.Errorf("delivery attempted on a skipped cycle")
	}
}

func TestAgent_PermissivePolicyUsesSentinel(t *testing.T) {
	cfg := testConfig()
	cfg.FixPolicy = domain.FixPolicyPermissive
	h := newHarness(cfg)
	h.source.set("0 0 0 false\n")
	h.scanner.observations = observations(1)

	r := h.agent.RunCycle(context.Background())

	if !r.FixDegraded || r.FixTimedOut {
		t.Errorf("report = %+v", r)
	}
	if h.agent.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", h.agent.Pending())
	}
	snap := h.agent.acc.Snapshot(h.clock.Now())
	if f := snap.Records[0].Fields(); f[2] != "0.000000" || f[3] != "0.000000" {
		t.Errorf("record = %q", snap.Records[0])
	}
}

func TestAgent_FlushNotDue(t *testing.T) {
	h := newHarness(testConfig())
	h.scanner.observations = observations(2)

	r := h.agent.RunCycle(context.Background())

	want := path(domain.CycleAwaitFix, domain.CycleScan, domain.CycleAccumulate,
		domain.CycleEvaluateFlush, domain.CycleIdle)
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	if r.Flushed || len(h.deliverer.sent) != 0 {
		t.Errorf("flushed before the interval or threshold")
	}
}

func TestAgent_ThresholdTriggersFlush(t *testing.T) {
	cfg := testConfig()
	cfg.FlushThreshold = 5
	cfg.MaxPayloadBytes = 0
	h := newHarness(cfg)
	h.scanner.observations = observations(6)

	r := h.agent.RunCycle(context.Background())
	if !r.Delivered {
		t.Errorf("threshold exceeded but batch not delivered: %+v", r)
	}
}

func TestAgent_DeliveryFailurePersistsAndDebounces(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	h.scanner.observations = observations(3)
	h.deliverer.outcomes = []domain.Outcome{domain.Failed(503, "unavailable", nil)}
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)

	want := path(domain.CycleAwaitFix, domain.CycleScan, domain.CycleAccumulate,
		domain.CycleEvaluateFlush, domain.CycleDrainQueue, domain.CycleDeliverCurrent,
		domain.CyclePersist, domain.CycleIdle)
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	if !r.Persisted || h.agent.Pending() != 0 || len(h.queue.payloads()) != 1 {
		t.Fatalf("failed batch not persisted: %+v", r)
	}

	// The flush clock advanced, so the next cycle does not flush again.
	r = h.agent.RunCycle(ctx)
	if r.Flushed {
		t.Errorf("flush repeated right after a failed delivery")
	}
}

func TestAgent_AmbiguousStopsDrainAndPersistsCurrent(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	_, _ = h.queue.Enqueue(ctx, "old-1\n")
	h.clock.Advance(time.Second)
	_, _ = h.queue.Enqueue(ctx, "old-2\n")

	h.scanner.observations = observations(2)
	h.deliverer.outcomes = []domain.Outcome{domain.Ambiguous("no response", context.DeadlineExceeded)}
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)

	if len(h.deliverer.sent) != 1 {
		t.Fatalf("sent %d batches after ambiguous outcome, want 1", len(h.deliverer.sent))
	}
	want := path(domain.CycleAwaitFix, domain.CycleScan, domain.CycleAccumulate,
		domain.CycleEvaluateFlush, domain.CycleDrainQueue, domain.CyclePersist, domain.CycleIdle)
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	payloads := h.queue.payloads()
	if len(payloads) != 3 || payloads[0] != "old-1\n" || payloads[1] != "old-2\n" {
		t.Errorf("queue = %q", payloads)
	}
	if h.agent.Pending() != 0 {
		t.Errorf("current batch not persisted")
	}
}

func TestAgent_RejectedEntryDoesNotBlockDrain(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	_, _ = h.queue.Enqueue(ctx, "poison\n")
	h.clock.Advance(time.Second)
	_, _ = h.queue.Enqueue(ctx, "good\n")

	h.deliverer.outcomes = []domain.Outcome{domain.Failed(400, "bad request", nil)}
	h.scanner.observations = observations(1)
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)

	if len(h.deliverer.sent) != 3 {
		t.Fatalf("sent %d batches, want 3", len(h.deliverer.sent))
	}
	if payloads := h.queue.payloads(); len(payloads) != 1 || payloads[0] != "poison\n" {
		t.Errorf("queue = %q, want only the rejected entry", payloads)
	}
	if r.Drained != 1 || r.DrainFailed != 1 || !r.Delivered {
		t.Errorf("report = %+v", r)
	}
}

func TestAgent_DrainLimit(t *testing.T) {
	cfg := testConfig()
	cfg.DrainLimit = 1
	h := newHarness(cfg)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = h.queue.Enqueue(ctx, fmt.Sprintf("old-%d\n", i))
		h.clock.Advance(time.Second)
	}
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)
	if r.Drained != 1 || len(h.queue.payloads()) != 2 {
		t.Errorf("drained %d, %d left; want 1 and 2", r.Drained, len(h.queue.payloads()))
	}
}

func TestAgent_StorageFailureKeepsRecords(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	h.link.up = false
	h.queue.enqueueErr = errors.New("no space left on device")
	h.scanner.observations = observations(3)
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)

	if !errors.Is(r.Err, domain.ErrStorage) {
		t.Fatalf("report error = %v, want storage failure", r.Err)
	}
	if r.Persisted || h.agent.Pending() != 3 {
		t.Fatalf("records dropped after storage failure: pending %d", h.agent.Pending())
	}

	// The retry waits for the backoff even though the flush is still due.
	r = h.agent.RunCycle(ctx)
	if r.Flushed {
		t.Errorf("retried storage immediately")
	}

	h.queue.enqueueErr = nil
	h.clock.Advance(DefaultBackoffInitial * 2)
	r = h.agent.RunCycle(ctx)
	if !r.Persisted || h.agent.Pending() != 0 {
		t.Errorf("retry after backoff did not persist: %+v", r)
	}
	if lines := strings.Count(h.queue.payloads()[0], "\n"); lines != 9 {
		t.Errorf("persisted %d records, want 9", lines)
	}
}

func TestAgent_OverflowPolicies(t *testing.T) {
	tests := []struct {
		policy      domain.OverflowPolicy
		wantPending bool
	}{
		{domain.OverflowDrop, false},
		{domain.OverflowRequeue, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			cfg := testConfig()
			cfg.OverflowPolicy = tt.policy
			h := newHarness(cfg)
			h.scanner.observations = observations(30)
			h.clock.Advance(2 * time.Minute)

			r := h.agent.RunCycle(context.Background())

			if r.Overflow == 0 {
				t.Fatalf("expected overflow for 30 records in 1000 bytes")
			}
			sent := h.deliverer.sent[0]
			if size := domain.EnvelopeSize(domain.ParseBatch(sent, time.Time{})); size > 1000 {
				t.Errorf("delivered envelope of %d bytes", size)
			}
			if got := h.agent.Pending() > 0; got != tt.wantPending {
				t.Errorf("pending = %d", h.agent.Pending())
			}
			if tt.wantPending && h.agent.Pending() != r.Overflow {
				t.Errorf("requeued %d records, want %d", h.agent.Pending(), r.Overflow)
			}
		})
	}
}

// Records that alone exceed the ceiling are dropped; whatever fits next to
// them is still delivered, under either overflow policy.
func TestAgent_OversizedRecordDiscarded(t *testing.T) {
	tests := []struct {
		policy      domain.OverflowPolicy
		wantPending int
	}{
		{domain.OverflowDrop, 0},
		{domain.OverflowRequeue, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxPayloadBytes = 100
			cfg.OverflowPolicy = tt.policy
			h := newHarness(cfg)
			ctx := context.Background()
			_, _ = h.queue.Enqueue(ctx, strings.Repeat("A", 120)+"\nok\n")

			long := domain.Observation{
				SSID:  strings.Repeat("x", 80),
				BSSID: domain.MAC{0xde, 0xad, 0xbe, 0xef, 0x01, 0x00},
				RSSI:  -70,
				Auth:  domain.AuthWPA2PSK,
			}
			h.scanner.observations = append([]domain.Observation{long}, observations(2)...)
			h.clock.Advance(2 * time.Minute)

			r := h.agent.RunCycle(ctx)

			if len(h.deliverer.sent) != 2 {
				t.Fatalf("sent %q, want the fitting queued record and one current record", h.deliverer.sent)
			}
			if h.deliverer.sent[0] != "ok\n" {
				t.Errorf("replayed %q, want %q", h.deliverer.sent[0], "ok\n")
			}
			if !strings.HasPrefix(h.deliverer.sent[1], "net-0,") || strings.Count(h.deliverer.sent[1], "\n") != 1 {
				t.Errorf("delivered %q, want only the first short record", h.deliverer.sent[1])
			}
			if !r.Delivered || r.Drained != 1 {
				t.Errorf("delivered = %v, drained = %d", r.Delivered, r.Drained)
			}
			if got := h.queue.payloads(); len(got) != 0 {
				t.Errorf("queue = %q, want empty", got)
			}
			if r.Overflow != 1 || h.agent.Pending() != tt.wantPending {
				t.Errorf("overflow = %d, pending = %d; want 1 and %d", r.Overflow, h.agent.Pending(), tt.wantPending)
			}
		})
	}
}

// An entry with only oversized records has nothing deliverable and is removed
// without a send.
func TestAgent_UndeliverableEntryRemoved(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPayloadBytes = 30
	h := newHarness(cfg)
	ctx := context.Background()
	_, _ = h.queue.Enqueue(ctx, strings.Repeat("A", 40)+"\n"+strings.Repeat("B", 40)+"\n")
	h.clock.Advance(2 * time.Minute)

	h.agent.RunCycle(ctx)

	if len(h.deliverer.sent) != 0 {
		t.Errorf("sent %q, want nothing", h.deliverer.sent)
	}
	if got := h.queue.payloads(); len(got) != 0 {
		t.Errorf("queue = %q, want empty", got)
	}
}

// A partly delivered entry keeps its place ahead of younger entries.
func TestAgent_RemainderKeepsQueuePosition(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPayloadBytes = 100
	h := newHarness(cfg)
	ctx := context.Background()
	a, b := strings.Repeat("a", 50)+"\n", strings.Repeat("b", 50)+"\n"
	_, _ = h.queue.Enqueue(ctx, a+b)
	h.clock.Advance(time.Second)
	_, _ = h.queue.Enqueue(ctx, "later\n")

	// The first entry's head goes through, then the endpoint stops answering.
	h.deliverer.outcomes = []domain.Outcome{
		domain.Succeeded(200),
		domain.Ambiguous("no response", context.DeadlineExceeded),
	}
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)

	if want := []string{a, b}; !reflect.DeepEqual(h.deliverer.sent, want) {
		t.Fatalf("sent %q, want %q", h.deliverer.sent, want)
	}
	if got, want := h.queue.payloads(), []string{b, "later\n"}; !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %q, want %q", got, want)
	}
	if r.Drained != 0 || r.DrainFailed != 1 {
		t.Errorf("drained = %d, failed = %d", r.Drained, r.DrainFailed)
	}
}

// An unreadable backlog must not let the current batch overtake it.
func TestAgent_ListFailurePersistsCurrent(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	_, _ = h.queue.Enqueue(ctx, "old-1\n")
	h.queue.listErr = errors.New("input/output error")
	h.scanner.observations = observations(2)
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)

	if len(h.deliverer.sent) != 0 {
		t.Errorf("sent %q while the backlog was unreadable", h.deliverer.sent)
	}
	if !errors.Is(r.Err, domain.ErrStorage) {
		t.Errorf("report error = %v, want storage failure", r.Err)
	}
	want := path(domain.CycleAwaitFix, domain.CycleScan, domain.CycleAccumulate,
		domain.CycleEvaluateFlush, domain.CycleDrainQueue, domain.CyclePersist, domain.CycleIdle)
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
	payloads := h.queue.payloads()
	if !r.Persisted || len(payloads) != 2 || payloads[0] != "old-1\n" {
		t.Errorf("persisted = %v, queue = %q", r.Persisted, payloads)
	}
}

func TestAgent_EmptyAccumulatorStillDrains(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	_, _ = h.queue.Enqueue(ctx, "old\n")
	h.clock.Advance(2 * time.Minute)

	r := h.agent.RunCycle(ctx)
	if r.Drained != 1 || len(h.deliverer.sent) != 1 || r.Delivered {
		t.Errorf("report = %+v", r)
	}
}

func TestAgent_Reconfigure(t *testing.T) {
	h := newHarness(testConfig())
	h.scanner.observations = observations(2)

	next := h.agent.Tunables()
	next.FlushInterval = 0
	h.agent.Reconfigure(next)

	r := h.agent.RunCycle(context.Background())
	if !r.Delivered {
		t.Errorf("new flush interval not applied")
	}
	if h.agent.Tunables().FlushInterval != 0 {
		t.Errorf("Tunables() = %+v", h.agent.Tunables())
	}
}

func TestAgent_FlushSplitsByBudget(t *testing.T) {
	h := newHarness(testConfig())
	h.scanner.observations = observations(30)
	h.agent.RunCycle(context.Background())

	if err := h.agent.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	payloads := h.queue.payloads()
	if len(payloads) < 2 {
		t.Fatalf("Flush() stored %d entries, want several", len(payloads))
	}
	total := 0
	for _, p := range payloads {
		b := domain.ParseBatch(p, time.Time{})
		if domain.EnvelopeSize(b) > 1000 {
			t.Errorf("entry of %d bytes exceeds budget", domain.EnvelopeSize(b))
		}
		total += b.Len()
	}
	if total != 30 || h.agent.Pending() != 0 {
		t.Errorf("stored %d records, %d pending", total, h.agent.Pending())
	}
}

func TestAgent_RunOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Once = true
	h := newHarness(cfg)

	if err := h.agent.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.emitter.reports) != 1 || h.indicator.blinks != 1 {
		t.Errorf("ran %d cycles, %d blinks", len(h.emitter.reports), h.indicator.blinks)
	}
}

func TestAgent_RunKeepsCadence(t *testing.T) {
	h := newHarness(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.emitter.onCycle = func(r CycleReport) {
		if len(h.emitter.reports) == 3 {
			cancel()
		}
	}

	err := h.agent.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}
	for i := 1; i < len(h.emitter.reports); i++ {
		gap := h.emitter.reports[i].Started.Sub(h.emitter.reports[i-1].Started)
		if gap != 35*time.Second {
			t.Errorf("cycle %d started %v after the previous, want 35s", i, gap)
		}
	}
}

func TestAgent_RunMinimumSleep(t *testing.T) {
	cfg := testConfig()
	cfg.CyclePeriod = 5 * time.Second
	h := newHarness(cfg)
	h.source.set("0 0 0 false\n") // every cycle spends the full 30s fix timeout
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.emitter.onCycle = func(r CycleReport) {
		if len(h.emitter.reports) == 2 {
			cancel()
		}
	}
	_ = h.agent.Run(ctx)

	r0, r1 := h.emitter.reports[0], h.emitter.reports[1]
	if gap := r1.Started.Sub(r0.Started); gap != r0.Duration+MinCycleSleep {
		t.Errorf("gap = %v, want duration %v plus %v", gap, r0.Duration, MinCycleSleep)
	}
}
