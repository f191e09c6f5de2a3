// internal/poller/builder.go
package poller

import (
	"github.com/rs/zerolog"

	cfg "github.com/corapoid/homeassistant-ever-powerline-ups/internal/config"
	pmodbus "github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller/modbus"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Build constructs a Poller and wires Modbus client lifecycle.
// No connection is made here: the first cycle connects, so an unreachable
// UPS at startup is reported as a failed cycle rather than a fatal error.
// On transport death, Poller discards the client and uses factory on a future cycle.
func Build(c cfg.Config, store *status.Store, logger zerolog.Logger) (*Poller, error) {
	mcfg := pmodbus.Config{
		Endpoint: c.Device.Endpoint(),
		SlaveID:  c.Device.SlaveID,
		Timeout:  c.Device.Timeout(),
	}
	if c.Device.DebugFrames {
		frames := logger.With().Str("component", "modbus").Logger()
		mcfg.FrameLogger = &frames
	}

	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		mc, err := pmodbus.Dial(mcfg)
		if err != nil {
			return nil, err
		}
		return mc, nil
	}

	return New(
		Config{
			Endpoint:                   mcfg.Endpoint,
			Interval:                   c.Poll.Interval(),
			RefetchIdentityOnReconnect: c.Device.RefetchIdentityOnReconnect,
		},
		factory,
		store,
		logger,
	)
}
