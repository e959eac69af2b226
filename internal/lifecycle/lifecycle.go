package lifecycle

import "sync/atomic"

// Phase is the process phase reported by the health endpoint.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseReady:
		return "ready"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// State holds the current phase. Constructed in main and shared with the
// health handler; the zero value is PhaseStarting.
type State struct {
	phase atomic.Int32
}

// MarkReady moves the process to PhaseReady unless shutdown already began.
func (s *State) MarkReady() {
	s.phase.CompareAndSwap(int32(PhaseStarting), int32(PhaseReady))
}

// MarkShuttingDown moves the process to PhaseShuttingDown. Call when SIGTERM/SIGINT is received.
func (s *State) MarkShuttingDown() {
	s.phase.Store(int32(PhaseShuttingDown))
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func (s *State) IsShuttingDown() bool {
	return s.Phase() == PhaseShuttingDown
}
