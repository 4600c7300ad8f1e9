// Package diag defines verification outcomes and the structured messages the
// verifier reports.
package diag

import "fmt"

// Status is a verification outcome. Statuses are totally ordered and only
// ever escalate.
type Status uint8

const (
	OK Status = iota
	Warning
	Error
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Max returns the worse of a and b.
func Max(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}

// Severity is the configured weight of a message kind.
type Severity uint8

const (
	SeverityHidden Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityHidden:
		return "hidden"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
}

// ParseSeverity parses "hidden", "warning" or "error".
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "hidden":
		return SeverityHidden, true
	case "warning":
		return SeverityWarning, true
	case "error":
		return SeverityError, true
	}
	return SeverityHidden, false
}

// Status returns the outcome a message of this severity produces.
func (s Severity) Status() Status {
	switch s {
	case SeverityWarning:
		return Warning
	case SeverityError:
		return Error
	default:
		return OK
	}
}
