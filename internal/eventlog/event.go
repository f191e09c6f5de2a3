// Package eventlog records UPS state transitions and commands in SQLite.
package eventlog

import (
	"time"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Kind classifies an event.
type Kind string

const (
	KindWarning Kind = "warning" // warning flag raised or cleared
	KindStatus  Kind = "status"  // enum status changed
	KindCommand Kind = "command" // command written to the device
	KindLink    Kind = "link"    // link health changed
)

// Event represents a single loggable action or state change.
type Event struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Kind   Kind      `json:"kind"`
	Key    string    `json:"key"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Diff lists the transitions between two consecutive snapshots.
// A nil prev is the baseline and yields nothing.
func Diff(prev, next *status.Snapshot) []Event {
	if prev == nil || next == nil {
		return nil
	}

	var out []Event

	for _, f := range register.Flags {
		was, is := prev.Flag(f), next.Flag(f)
		if was == is {
			continue
		}
		out = append(out, Event{
			At:   next.At,
			Kind: KindWarning,
			Key:  f.Key,
			From: status.FormatValue(was),
			To:   status.FormatValue(is),
		})
	}

	enums := []struct {
		key     string
		was, is string
	}{
		{"operating_mode", prev.OperatingModeName, next.OperatingModeName},
		{"battery_status", prev.BatteryStatusName, next.BatteryStatusName},
		{"battery_test_result", prev.TestResultName, next.TestResultName},
		{"abm_status", prev.ABMStatusName, next.ABMStatusName},
	}
	for _, e := range enums {
		if e.was == e.is {
			continue
		}
		out = append(out, Event{
			At:   next.At,
			Kind: KindStatus,
			Key:  e.key,
			From: e.was,
			To:   e.is,
		})
	}

	return out
}

// LinkEvent describes a link health transition.
func LinkEvent(at time.Time, prev, next status.Link, cause error) Event {
	e := Event{
		At:   at,
		Kind: KindLink,
		Key:  "link",
		From: status.HealthName(prev.Health),
		To:   status.HealthName(next.Health),
	}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}
