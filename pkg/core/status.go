package core

// StepStatus represents the execution status of a scenario or one of its steps
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Expected UI behaviour did not occur
	StatusErrored                   // Session, transport or structural failure
	StatusSkipped                   // Filtered out or run stopped
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element/item not found, post-action state mismatch
	ErrCategoryTimeout                         // Bounded wait elapsed
	ErrCategoryConnection                      // Automation server/session lost
	ErrCategoryApp                             // App not in foreground, crashed
	ErrCategoryConfig                          // Invalid configuration
	ErrCategoryStructure                       // Missing controls, item/control misalignment
	ErrCategoryParse                           // Malformed descriptor
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryStructure:
		return "structure"
	case ErrCategoryParse:
		return "parse"
	default:
		return "unknown"
	}
}

// StatusForError maps an error to the status a scenario step should carry.
// Assertion-category failures are "failed"; everything else is "errored".
func StatusForError(err error) StepStatus {
	if err == nil {
		return StatusPassed
	}
	if CategoryOf(err) == ErrCategoryAssertion {
		return StatusFailed
	}
	return StatusErrored
}
