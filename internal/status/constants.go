// internal/status/constants.go
package status

// Link health codes.
// These values are published to consumers and MUST NOT be renumbered.

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before the first cycle completes.
const HealthUnknown uint16 = 0

// HealthOK represents a device answering every poll.
const HealthOK uint16 = 1

// HealthError represents a failed poll cycle.
const HealthError uint16 = 2

// ---- LIMITS ----

// MaxSecondsInError caps the error duration counter.
const MaxSecondsInError uint16 = 65535

// HealthName returns the display name of a health code.
func HealthName(code uint16) string {
	switch code {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	default:
		return "unknown"
	}
}
