package scheduler

import "sync/atomic"

// LifecycleState is one state in a pipeline or sub-pipeline's lifecycle.
//
//	Initializing -> Running -> Stopping -> Final
//
// Emitters and receivers accept no messages until their owning context
// reaches Running; they stop producing once Stopping begins (sources are
// signaled first); they are torn down in Final.
type LifecycleState uint32

const (
	// Initializing: emitters/receivers are being constructed; no delivery.
	Initializing LifecycleState = iota
	// Running: sources have been started and messages may flow.
	Running
	// Stopping: sources have been signaled to stop; pending deliveries drain.
	Stopping
	// Final: the context is fully torn down.
	Final
)

func (s LifecycleState) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Final:
		return "Final"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free CAS state machine over LifecycleState, generalized
// from the teacher event loop's 5-state machine to this package's 4-state
// Initializing/Running/Stopping/Final lifecycle. Use TryTransition for
// guarded moves and Store only for the unconditional initial assignment.
type FastState struct {
	v atomic.Uint32
}

// NewFastState returns a state machine starting at Initializing.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint32(Initializing))
	return s
}

// Load returns the current state.
func (s *FastState) Load() LifecycleState { return LifecycleState(s.v.Load()) }

// TryTransition attempts the from->to move via compare-and-swap, returning
// whether it succeeded.
func (s *FastState) TryTransition(from, to LifecycleState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsRunning reports whether the state is Running.
func (s *FastState) IsRunning() bool { return s.Load() == Running }

// IsTerminal reports whether the state is Final.
func (s *FastState) IsTerminal() bool { return s.Load() == Final }

// CanAcceptWork reports whether work may still be scheduled: anything short
// of Final.
func (s *FastState) CanAcceptWork() bool { return s.Load() != Final }
