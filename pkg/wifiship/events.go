package wifiship

import (
	"github.com/bft-labs/wifiship/internal/app"
	"github.com/bft-labs/wifiship/internal/domain"
)

// CycleReport describes one pass of the cycle loop: the states it went
// through and what happened in each.
type CycleReport = app.CycleReport

// CycleState is a step of the cycle loop.
type CycleState = domain.CycleState

// DeliveryEvent describes one upload attempt, live or replayed.
type DeliveryEvent = app.DeliveryEvent

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// PersistEvent is emitted when a batch is written to the offline queue
// instead of being delivered.
type PersistEvent struct {
	EntryID EntryID
	// LinkDown is true when the batch was queued without an attempt.
	LinkDown bool
	// Overflow counts records held back by the payload ceiling.
	Overflow int
}

// EventHandler receives notifications from a running instance. Methods are
// called synchronously from the cycle goroutine.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnCycle(report CycleReport)
	OnDelivery(event DeliveryEvent)
	OnPersist(event PersistEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnCycle(CycleReport)            {}
func (BaseEventHandler) OnDelivery(DeliveryEvent)       {}
func (BaseEventHandler) OnPersist(PersistEvent)         {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnCycle(report app.CycleReport) {
	if e.handler == nil {
		return
	}
	if report.Persisted {
		e.handler.OnPersist(PersistEvent{
			EntryID:  report.EntryID,
			LinkDown: report.LinkDown,
			Overflow: report.Overflow,
		})
	}
	e.handler.OnCycle(report)
}

func (e *eventEmitterWrapper) OnDelivery(ev app.DeliveryEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnDelivery(ev)
}
