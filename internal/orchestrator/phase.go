package orchestrator

import "fmt"

// Phase is the orchestrator lifecycle state.
type Phase string

// Run phases, in order. Any non-terminal phase may transition to PhaseFailed.
const (
	PhaseParsing    Phase = "parsing"
	PhaseResolving  Phase = "resolving"
	PhaseBuilding   Phase = "building"
	PhaseCollecting Phase = "collecting"
	PhasePublishing Phase = "publishing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

func allowedTransition(from, to Phase) bool {
	if to == PhaseFailed {
		return !from.Terminal()
	}
	switch from {
	case PhaseParsing:
		return to == PhaseResolving
	case PhaseResolving:
		return to == PhaseBuilding
	case PhaseBuilding:
		return to == PhaseCollecting
	case PhaseCollecting:
		return to == PhasePublishing || to == PhaseDone
	case PhasePublishing:
		return to == PhaseDone
	default:
		return false
	}
}

func (o *Orchestrator) advance(to Phase) error {
	if !allowedTransition(o.phase, to) {
		return fmt.Errorf("invalid phase transition %s -> %s", o.phase, to)
	}
	o.phase = to
	o.logger().Debug("phase entered", "phase", string(to))
	return nil
}
