// internal/poller/errors.go
package poller

import (
	"errors"
	"fmt"

	pmodbus "github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller/modbus"
)

// ConnectionError means the device could not be reached, or the transport
// failed mid-exchange. The session is invalidated when one occurs.
type ConnectionError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("poller: %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError means the device answered, but with an exception or a
// malformed response.
type ProtocolError struct {
	Op      string
	Address uint16

	// Exception is the device exception code, 0 for a malformed response.
	Exception uint8
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("poller: %s 0x%04X: %v", e.Op, e.Address, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Code returns the device exception code, or 1 when there is none.
func (e *ProtocolError) Code() uint16 {
	if e.Exception == 0 {
		return 1
	}
	return uint16(e.Exception)
}

// UpdateError is the single failure reported for an aborted poll cycle.
type UpdateError struct {
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update failed: %v", e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// ErrRange is returned for on-demand access outside the protocol limits.
var ErrRange = errors.New("poller: register range out of bounds")

// ioError sorts a client error into the taxonomy above.
func ioError(endpoint, op string, addr uint16, err error) error {
	var ex *pmodbus.ExceptionError
	if errors.As(err, &ex) {
		return &ProtocolError{Op: op, Address: addr, Exception: ex.Exception, Err: err}
	}
	return &ConnectionError{Endpoint: endpoint, Op: op, Err: err}
}

// invalidates reports whether err means the cached connection is unusable.
func invalidates(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
