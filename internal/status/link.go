// internal/status/link.go
package status

import "errors"

// Link describes connection health as seen by the orchestrator.
// It holds no history beyond the current state.
type Link struct {
	Health         uint16 `json:"health"`
	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
}

// Observe folds one poll outcome into the link state.
// It reports whether anything changed.
func (l *Link) Observe(err error) bool {
	before := *l

	if err == nil {
		l.Health = HealthOK
		l.LastErrorCode = 0
		l.SecondsInError = 0
		return *l != before
	}

	l.Health = HealthError
	l.LastErrorCode = ErrorCode(err)

	// SecondsInError only advances on Tick.
	return *l != before
}

// Tick advances the error duration by one second while not OK.
// It reports whether anything changed.
func (l *Link) Tick() bool {
	if l.Health == HealthOK {
		return false
	}
	if l.SecondsInError >= MaxSecondsInError {
		return false
	}
	l.SecondsInError++
	return true
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}

	return 1
}
