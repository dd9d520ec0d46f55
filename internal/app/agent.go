package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// MinCycleSleep is the shortest pause between two cycles.
const MinCycleSleep = time.Second

// Tunables are the settings that may change while the agent runs. A new set
// takes effect at the start of the next cycle.
type Tunables struct {
	CyclePeriod     time.Duration
	FixTimeout      time.Duration
	FixPolicy       domain.FixPolicy
	FlushInterval   time.Duration
	FlushThreshold  int
	MaxPayloadBytes int
	OverflowPolicy  domain.OverflowPolicy
	// DrainLimit caps queue entries replayed per flush; zero means all.
	DrainLimit int
}

// AgentConfig contains configuration for the cycle loop.
type AgentConfig struct {
	Tunables

	MaxPendingRecords int
	Once              bool
}

// CycleReport describes what one cycle did.
type CycleReport struct {
	Started  time.Time
	Duration time.Duration
	Path     []domain.CycleState

	Fix         domain.LocationFix
	FixTimedOut bool
	FixDegraded bool

	Scanned  int
	Appended int
	// Evicted counts records dropped because the accumulator was full.
	Evicted int

	Flushed     bool
	LinkDown    bool
	Drained     int
	DrainFailed int
	Delivered   bool
	Persisted   bool
	EntryID     domain.EntryID
	Overflow    int

	Err error
}

func (r *CycleReport) enter(s domain.CycleState) {
	r.Path = append(r.Path, s)
}

// DeliveryEvent describes one delivery attempt.
type DeliveryEvent struct {
	// EntryID is set when the batch came from the offline queue.
	EntryID  domain.EntryID
	Replay   bool
	Records  int
	Outcome  domain.Outcome
	Duration time.Duration
}

// CycleEmitter receives cycle and delivery notifications.
type CycleEmitter interface {
	OnCycle(report CycleReport)
	OnDelivery(ev DeliveryEvent)
}

// Agent is the per-cycle control loop: acquire fix, scan, format,
// accumulate, evaluate flush, drain the queue, then deliver or persist. It
// owns the accumulator and is the only writer of the queue.
type Agent struct {
	config    AgentConfig
	gate      *FixGate
	scanner   ports.Scanner
	link      ports.Link
	deliverer ports.Deliverer
	queue     ports.Queue
	indicator ports.Indicator
	clock     clock.Clock
	logger    ports.Logger
	emitter   CycleEmitter

	acc      *Accumulator
	backoff  *backoff
	retryAt  time.Time
	mu       sync.Mutex
	incoming *Tunables

	// pending mirrors acc.Len() for readers outside the cycle loop.
	pending atomic.Int64
}

// Deps bundles the collaborators of an Agent.
type Deps struct {
	Gate      *FixGate
	Scanner   ports.Scanner
	Link      ports.Link
	Deliverer ports.Deliverer
	Queue     ports.Queue
	Indicator ports.Indicator
	Clock     clock.Clock
	Logger    ports.Logger
	Emitter   CycleEmitter
}

// NewAgent creates a new agent with the given dependencies.
func NewAgent(config AgentConfig, deps Deps) *Agent {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Agent{
		config:    config,
		gate:      deps.Gate,
		scanner:   deps.Scanner,
		link:      deps.Link,
		deliverer: deps.Deliverer,
		queue:     deps.Queue,
		indicator: deps.Indicator,
		clock:     clk,
		logger:    deps.Logger,
		emitter:   deps.Emitter,
		acc:       NewAccumulator(config.MaxPendingRecords, clk.Now()),
		backoff:   newBackoff(DefaultBackoffInitial, DefaultBackoffMax),
	}
}

// Reconfigure schedules new tunables for the next cycle. Safe to call from
// any goroutine; only the latest set is kept.
func (a *Agent) Reconfigure(t Tunables) {
	a.mu.Lock()
	a.incoming = &t
	a.mu.Unlock()
}

// Tunables returns the settings currently in effect.
func (a *Agent) Tunables() Tunables {
	return a.config.Tunables
}

// Pending returns the number of records waiting in memory.
func (a *Agent) Pending() int {
	return int(a.pending.Load())
}

func (a *Agent) applyReconfigure() {
	a.mu.Lock()
	t := a.incoming
	a.incoming = nil
	a.mu.Unlock()

	if t == nil || *t == a.config.Tunables {
		return
	}
	a.config.Tunables = *t
	a.logger.Info("tunables updated",
		ports.Duration("cycle_period", t.CyclePeriod),
		ports.Duration("flush_interval", t.FlushInterval),
		ports.Int("flush_threshold", t.FlushThreshold),
		ports.Int("max_payload_bytes", t.MaxPayloadBytes),
		ports.String("fix_policy", string(t.FixPolicy)),
		ports.String("overflow_policy", string(t.OverflowPolicy)),
	)
}

// Run executes cycles at a fixed cadence until ctx is canceled. In once
// mode it runs a single cycle and returns nil.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent loop starting",
		ports.String("fix_policy", string(a.config.FixPolicy)),
		ports.String("overflow_policy", string(a.config.OverflowPolicy)),
		ports.Duration("cycle_period", a.config.CyclePeriod),
	)

	for {
		report := a.RunCycle(ctx)
		if a.indicator != nil {
			a.indicator.Blink()
		}

		if a.config.Once {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		sleep := a.config.CyclePeriod - report.Duration
		if sleep < MinCycleSleep {
			sleep = MinCycleSleep
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.clock.After(sleep):
		}
	}
}

// RunCycle executes one pass of the state machine and reports the path it
// took. It never returns an error: every failure degrades to persisting or
// skipping, and is recorded in the report.
func (a *Agent) RunCycle(ctx context.Context) (r CycleReport) {
	a.applyReconfigure()

	r.Started = a.clock.Now()
	defer func() {
		r.enter(domain.CycleIdle)
		r.Duration = a.clock.Now().Sub(r.Started)
		a.pending.Store(int64(a.acc.Len()))
		if a.emitter != nil {
			a.emitter.OnCycle(r)
		}
	}()

	r.enter(domain.CycleAwaitFix)
	fix, err := a.gate.Await(ctx, a.config.FixTimeout)
	if err != nil {
		if !errors.Is(err, domain.ErrFixTimeout) {
			r.Err = err
			return r
		}
		if a.config.FixPolicy != domain.FixPolicyPermissive {
			r.FixTimedOut = true
			a.logger.Info("no trustworthy fix, skipping cycle",
				ports.Duration("timeout", a.config.FixTimeout),
				ports.String("fix_policy", string(domain.FixPolicyClean)),
			)
			return r
		}
		r.FixDegraded = true
		fix = domain.SentinelFix
		a.logger.Warn("no trustworthy fix, recording with sentinel coordinates",
			ports.String("fix_policy", string(domain.FixPolicyPermissive)),
		)
	}
	r.Fix = fix

	r.enter(domain.CycleScan)
	observations, err := a.scanner.Scan(ctx)
	if err != nil {
		a.logger.Warn("scan failed", ports.Err(err))
		observations = nil
	}
	r.Scanned = len(observations)

	r.enter(domain.CycleAccumulate)
	records := make([]domain.Record, 0, len(observations))
	for _, obs := range observations {
		records = append(records, domain.FormatRecord(obs, fix))
	}
	r.Appended = len(records)
	if r.Evicted = a.acc.Append(records...); r.Evicted > 0 {
		a.logger.Warn("accumulator full, dropped oldest records",
			ports.Int("dropped", r.Evicted),
			ports.Int("cap", a.config.MaxPendingRecords),
		)
	}
	a.logger.Debug("records accumulated",
		ports.Int("scanned", r.Scanned),
		ports.Int("pending", a.acc.Len()),
		ports.Float64("lat", fix.Latitude),
		ports.Float64("lon", fix.Longitude),
		ports.Int("satellites", fix.Satellites),
	)

	r.enter(domain.CycleEvaluateFlush)
	now := a.clock.Now()
	policy := FlushPolicy{Interval: a.config.FlushInterval, Threshold: a.config.FlushThreshold}
	if !policy.ShouldFlush(a.acc, now) {
		return r
	}
	if now.Before(a.retryAt) {
		a.logger.Debug("storage retry pending, holding records",
			ports.Duration("retry_in", a.retryAt.Sub(now)),
			ports.Int("pending", a.acc.Len()),
		)
		return r
	}

	a.flush(ctx, &r, now)
	return r
}

// flush drives DRAIN_QUEUE, DELIVER_CURRENT and PERSIST.
func (a *Agent) flush(ctx context.Context, r *CycleReport, now time.Time) {
	r.Flushed = true
	bounder := Bounder{MaxBytes: a.config.MaxPayloadBytes}
	current, overflow := a.bound(bounder, a.acc.Snapshot(now))
	r.Overflow = overflow.Len()

	up := a.link.Up(ctx)
	if a.indicator != nil {
		a.indicator.Set(up)
	}
	if !up {
		r.LinkDown = true
		a.logger.Info("no uplink, persisting batch", ports.Int("records", current.Len()))
		r.enter(domain.CyclePersist)
		a.persist(ctx, r, current, overflow, now)
		return
	}

	r.enter(domain.CycleDrainQueue)
	if !a.drain(ctx, r, bounder) {
		r.enter(domain.CyclePersist)
		a.persist(ctx, r, current, overflow, now)
		return
	}

	if current.Empty() {
		a.commit(overflow, now)
		return
	}

	r.enter(domain.CycleDeliverCurrent)
	out := a.deliver(ctx, current, 0)
	if out.OK() {
		r.Delivered = true
		a.commit(overflow, now)
		return
	}

	a.logger.Warn("delivery failed, persisting batch",
		ports.String("outcome", out.String()),
		ports.Int("records", current.Len()),
	)
	r.enter(domain.CyclePersist)
	a.persist(ctx, r, current, overflow, now)
}

// drain replays queued entries oldest first. It returns false when the
// endpoint looks unreachable or the backlog cannot be listed, in which case
// nothing more is sent this cycle.
func (a *Agent) drain(ctx context.Context, r *CycleReport, bounder Bounder) bool {
	ids, err := a.queue.List(ctx)
	if err != nil {
		r.Err = err
		a.logger.Error("list offline queue failed", ports.Err(err))
		return false
	}
	if len(ids) == 0 {
		return true
	}

	a.logger.Info("draining offline queue", ports.Int("entries", len(ids)))
	for i, id := range ids {
		if a.config.DrainLimit > 0 && i >= a.config.DrainLimit {
			a.logger.Info("drain limit reached", ports.Int("remaining", len(ids)-i))
			break
		}
		if ctx.Err() != nil {
			return false
		}

		payload, err := a.queue.Read(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrEntryNotFound) {
				r.Err = err
				r.DrainFailed++
				a.logger.Error("read queued entry failed", ports.String("entry", id.String()), ports.Err(err))
			}
			continue
		}

		entry := domain.ParseBatch(payload, id.Time())
		if entry.Empty() {
			a.logger.Warn("discarding empty queued entry", ports.String("entry", id.String()))
			a.remove(ctx, r, id)
			continue
		}
		if !a.replay(ctx, r, bounder, id, entry) {
			return false
		}
	}
	return true
}

// replay sends one queued entry in ceiling-sized chunks. After each accepted
// chunk the entry is shrunk to what is left, so a later failure resends only
// undelivered records. It returns false when draining must stop.
func (a *Agent) replay(ctx context.Context, r *CycleReport, bounder Bounder, id domain.EntryID, entry domain.Batch) bool {
	for {
		send, rest := a.bound(bounder, entry)
		if send.Empty() {
			// Every remaining record alone exceeds the ceiling.
			a.remove(ctx, r, id)
			return true
		}

		out := a.deliver(ctx, send, id)
		if !out.OK() {
			r.DrainFailed++
			if out.Kind == domain.OutcomeAmbiguous || !out.Responded() {
				a.logger.Warn("endpoint unreachable, stopping drain",
					ports.String("entry", id.String()),
					ports.String("outcome", out.String()),
				)
				return false
			}
			a.logger.Warn("queued entry rejected, keeping it and moving on",
				ports.String("entry", id.String()),
				ports.String("outcome", out.String()),
			)
			return true
		}

		if rest.Empty() {
			a.remove(ctx, r, id)
			r.Drained++
			return true
		}
		if !a.keepRemainder(ctx, r, id, rest) {
			return false
		}
		entry = rest
	}
}

// keepRemainder rewrites a partly delivered entry to hold only the records
// that were not sent, so it keeps its place at the head of the queue. On
// failure the entry stays whole and its delivered part will be sent again.
func (a *Agent) keepRemainder(ctx context.Context, r *CycleReport, id domain.EntryID, rest domain.Batch) bool {
	if err := a.queue.Replace(ctx, id, rest.Text()); err != nil {
		r.Err = err
		a.logger.Error("shrink queued entry failed, stopping drain",
			ports.String("entry", id.String()),
			ports.Err(err),
		)
		return false
	}
	a.logger.Debug("queued entry partly delivered",
		ports.String("entry", id.String()),
		ports.Int("remaining", rest.Len()),
	)
	return true
}

// bound splits b like Bounder.Bound, first discarding leading records that
// alone exceed the ceiling. send is empty only when every record is
// oversized.
func (a *Agent) bound(bounder Bounder, b domain.Batch) (send, rest domain.Batch) {
	for {
		send, rest = bounder.Bound(b)
		if !send.Empty() || rest.Empty() {
			return send, rest
		}
		b = a.discardOversized(rest)
	}
}

// discardOversized drops the first record of b, which alone exceeds the
// payload ceiling and could never be delivered.
func (a *Agent) discardOversized(b domain.Batch) domain.Batch {
	a.logger.Warn("record exceeds payload ceiling, discarded",
		ports.Int("bytes", domain.EnvelopeSize(b.Prefix(1))),
		ports.Int("max_bytes", a.config.MaxPayloadBytes),
	)
	return b.Suffix(1)
}

func (a *Agent) remove(ctx context.Context, r *CycleReport, id domain.EntryID) {
	if err := a.queue.Delete(ctx, id); err != nil {
		r.Err = err
		a.logger.Error("delete delivered entry failed; it will be sent again",
			ports.String("entry", id.String()),
			ports.Err(err),
		)
	}
}

func (a *Agent) deliver(ctx context.Context, batch domain.Batch, id domain.EntryID) domain.Outcome {
	start := a.clock.Now()
	out := a.deliverer.Deliver(ctx, batch)
	took := a.clock.Now().Sub(start)

	fields := []ports.Field{
		ports.Int("records", batch.Len()),
		ports.String("outcome", out.String()),
		ports.Duration("duration", took),
	}
	if id != 0 {
		fields = append(fields, ports.String("entry", id.String()))
	}
	if out.OK() {
		a.logger.Info("batch delivered", fields...)
	} else {
		a.logger.Debug("batch not delivered", fields...)
	}

	if a.emitter != nil {
		a.emitter.OnDelivery(DeliveryEvent{
			EntryID:  id,
			Replay:   id != 0,
			Records:  batch.Len(),
			Outcome:  out,
			Duration: took,
		})
	}
	return out
}

// persist enqueues the current batch. On storage failure the accumulator is
// left untouched and the next flush waits for the backoff delay.
func (a *Agent) persist(ctx context.Context, r *CycleReport, current, overflow domain.Batch, now time.Time) {
	if current.Empty() {
		a.commit(overflow, now)
		return
	}

	id, err := a.queue.Enqueue(ctx, current.Text())
	if err != nil {
		r.Err = err
		delay := a.backoff.Next()
		a.retryAt = now.Add(delay)
		a.logger.Error("persist batch failed, keeping records in memory",
			ports.Err(err),
			ports.Int("records", a.acc.Len()),
			ports.Duration("retry_in", delay),
			ports.Time("retry_at", a.retryAt),
		)
		return
	}

	r.Persisted = true
	r.EntryID = id
	a.backoff.Reset()
	a.retryAt = time.Time{}
	a.logger.Info("batch persisted",
		ports.String("entry", id.String()),
		ports.Int("records", current.Len()),
	)
	a.commit(overflow, now)
}

// commit resets the accumulator after the snapshot was delivered or
// persisted, applies the overflow policy and advances the flush clock.
func (a *Agent) commit(overflow domain.Batch, now time.Time) {
	a.acc.Reset()
	if !overflow.Empty() {
		if a.config.OverflowPolicy == domain.OverflowRequeue {
			a.acc.Append(overflow.Records...)
			a.logger.Info("overflow returned to accumulator", ports.Int("records", overflow.Len()))
		} else {
			a.logger.Warn("overflow discarded", ports.Int("records", overflow.Len()))
		}
	}
	a.acc.MarkFlushed(now)
}

// Flush persists everything still in memory, split into entries that each
// fit the payload ceiling. It is called on shutdown; nothing is delivered.
// Records that alone exceed the ceiling are dropped.
func (a *Agent) Flush(ctx context.Context) error {
	defer func() { a.pending.Store(int64(a.acc.Len())) }()
	if a.acc.Len() == 0 {
		return nil
	}

	now := a.clock.Now()
	bounder := Bounder{MaxBytes: a.config.MaxPayloadBytes}
	rest := a.acc.Snapshot(now)
	entries := 0
	for !rest.Empty() {
		var chunk domain.Batch
		chunk, rest = a.bound(bounder, rest)
		if chunk.Empty() {
			break
		}
		if _, err := a.queue.Enqueue(ctx, chunk.Text()); err != nil {
			// Keep what was not stored yet.
			a.acc.Reset()
			a.acc.Append(chunk.Records...)
			a.acc.Append(rest.Records...)
			return err
		}
		entries++
	}

	a.logger.Info("pending records persisted on shutdown", ports.Int("entries", entries))
	a.acc.Reset()
	return nil
}
