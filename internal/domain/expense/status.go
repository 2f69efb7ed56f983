package expense

import "fmt"

// ProcessingStatus tracks OCR progress for a receipt.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// ParseProcessingStatus validates a stored or user-supplied status.
func ParseProcessingStatus(s string) (ProcessingStatus, error) {
	switch ProcessingStatus(s) {
	case ProcessingPending, ProcessingProcessing, ProcessingCompleted, ProcessingFailed:
		return ProcessingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown processing status %q", s)
	}
}

// IsTerminal reports whether no further OCR transitions are possible.
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case ProcessingCompleted, ProcessingFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s may move to next.
// Status is monotonic: pending -> processing -> {completed|failed}, and
// pending may jump straight to a terminal state.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case ProcessingPending:
		switch next {
		case ProcessingProcessing, ProcessingCompleted, ProcessingFailed:
			return true
		}
		return false
	case ProcessingProcessing:
		switch next {
		case ProcessingCompleted, ProcessingFailed:
			return true
		}
		return false
	case ProcessingCompleted, ProcessingFailed:
		return false
	default:
		return false
	}
}

// MatchStatus is the lifecycle state of a proposed match.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchRejected  MatchStatus = "rejected"
)

// ParseMatchStatus validates a stored or user-supplied status.
func ParseMatchStatus(s string) (MatchStatus, error) {
	switch MatchStatus(s) {
	case MatchPending, MatchConfirmed, MatchRejected:
		return MatchStatus(s), nil
	default:
		return "", fmt.Errorf("unknown match status %q", s)
	}
}

// IsTerminal reports whether the match has been decided by the user.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchConfirmed || s == MatchRejected
}

// Transition applies the match state machine.
//
// It returns changed=false with a nil error when s already equals target
// (confirm and reject are idempotent), ErrConflict when moving between the
// two terminal states, and ErrInvalidTransition when target is pending or unknown.
func (s MatchStatus) Transition(target MatchStatus) (changed bool, err error) {
	switch target {
	case MatchConfirmed, MatchRejected:
	case MatchPending:
		return false, fmt.Errorf("%w: cannot move match back to pending", ErrInvalidTransition)
	default:
		return false, fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, target)
	}

	switch s {
	case MatchPending:
		return true, nil
	case MatchConfirmed, MatchRejected:
		if s == target {
			return false, nil
		}
		return false, fmt.Errorf("%w: match is already %s", ErrConflict, s)
	default:
		return false, fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, s)
	}
}
