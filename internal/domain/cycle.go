package domain

// CycleState is a step of the per-cycle control loop.
type CycleState int

const (
	CycleIdle CycleState = iota
	CycleAwaitFix
	CycleScan
	CycleAccumulate
	CycleEvaluateFlush
	CycleDrainQueue
	CycleDeliverCurrent
	CyclePersist
)

// String returns the state name used in logs and reports.
func (s CycleState) String() string {
	switch s {
	case CycleIdle:
		return "IDLE"
	case CycleAwaitFix:
		return "AWAIT_FIX"
	case CycleScan:
		return "SCAN"
	case CycleAccumulate:
		return "ACCUMULATE"
	case CycleEvaluateFlush:
		return "EVALUATE_FLUSH"
	case CycleDrainQueue:
		return "DRAIN_QUEUE"
	case CycleDeliverCurrent:
		return "DELIVER_CURRENT"
	case CyclePersist:
		return "PERSIST"
	default:
		return "UNKNOWN"
	}
}

// FixPolicy decides what a cycle does when no trustworthy fix arrives.
type FixPolicy string

const (
	// FixPolicyClean skips the cycle so no placeholder coordinates enter the
	// dataset.
	FixPolicyClean FixPolicy = "clean"
	// FixPolicyPermissive substitutes SentinelFix and records anyway.
	FixPolicyPermissive FixPolicy = "permissive"
)

// OverflowPolicy decides what happens to records that do not fit the wire
// budget.
type OverflowPolicy string

const (
	// OverflowDrop discards records that do not fit.
	OverflowDrop OverflowPolicy = "drop"
	// OverflowRequeue returns them to the accumulator for the next flush.
	OverflowRequeue OverflowPolicy = "requeue"
)
