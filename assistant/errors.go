package assistant

import "fmt"

// TransientServiceError wraps a failed or timed-out call to one of the
// external services (expansion, retrieval). The turn aborts; counters
// already committed for completed stages reflect real usage and are kept.
// Callers may retry the turn.
type TransientServiceError struct {
	Stage string
	Err   error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Stage, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// StreamInterruptedError is a mid-stream chat completion failure. Whatever
// streamed before the failure is discarded from counting and no assistant
// message is appended for the turn.
type StreamInterruptedError struct {
	Err error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamInterruptedError) Unwrap() error { return e.Err }

// PreconditionError is a sequencing defect, such as a history overwrite
// with no user message present. Fatal to the turn and never retried.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated in %s: %v", e.Op, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }
