// Package control drives the writable UPS registers: the battery test
// command word and the two 32-bit delay timers.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/codec"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/eventlog"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
)

// Device is the subset of the poller used for commands.
type Device interface {
	ReadRegisters(ctx context.Context, address, count uint16) ([]uint16, error)
	WriteRegister(ctx context.Context, address, value uint16) error
	WriteRegisters(ctx context.Context, address uint16, values []uint16) error
	RequestRefresh()
}

// Sink receives one event per command attempt.
type Sink interface {
	Record(e eventlog.Event)
}

// Button is a one-shot command written to the battery test register.
type Button struct {
	Key      string
	Value    uint16
	Icon     string
	Disabled bool // not enabled by default
}

var (
	StartBatteryTest  = Button{Key: "battery_test_start", Value: register.BatteryTestStart, Icon: "mdi:battery-sync"}
	CancelBatteryTest = Button{Key: "battery_test_cancel", Value: register.BatteryTestCancel, Icon: "mdi:battery-remove", Disabled: true}
)

// Buttons lists every button in display order.
var Buttons = []Button{StartBatteryTest, CancelBatteryTest}

// Delay is a 32-bit timer stored MSB first in two consecutive registers.
type Delay struct {
	Key     string
	Address uint16
	Icon    string
}

var (
	ShutdownDelay = Delay{Key: "shutdown_delay", Address: register.ShutdownDelay, Icon: "mdi:timer-off-outline"}
	StartupDelay  = Delay{Key: "startup_delay", Address: register.StartupDelay, Icon: "mdi:timer-outline"}
)

// Delays lists every delay timer in display order.
var Delays = []Delay{ShutdownDelay, StartupDelay}

// Accepted delay values, in seconds.
const (
	MinDelay = 0
	MaxDelay = 65535
)

// ErrDelayRange is returned by SetDelay for values outside [MinDelay, MaxDelay].
var ErrDelayRange = errors.New("control: delay out of range")

// ButtonByKey returns the button with the given key.
func ButtonByKey(key string) (Button, bool) {
	for _, b := range Buttons {
		if b.Key == key {
			return b, true
		}
	}
	return Button{}, false
}

// DelayByKey returns the delay timer with the given key.
func DelayByKey(key string) (Delay, bool) {
	for _, d := range Delays {
		if d.Key == key {
			return d, true
		}
	}
	return Delay{}, false
}

// Controller issues commands and caches the last known delay values.
type Controller struct {
	dev  Device
	sink Sink
	log  zerolog.Logger

	mu     sync.RWMutex
	delays map[string]uint32
}

// New creates a controller. sink may be nil.
func New(dev Device, sink Sink, logger zerolog.Logger) *Controller {
	return &Controller{
		dev:    dev,
		sink:   sink,
		log:    logger,
		delays: make(map[string]uint32, len(Delays)),
	}
}

// Press writes the button's command value. On success an out-of-band
// refresh is requested.
func (c *Controller) Press(ctx context.Context, b Button) error {
	c.log.Debug().Str("button", b.Key).Uint16("value", b.Value).Msg("pressing button")

	err := c.dev.WriteRegister(ctx, register.BatteryTest, b.Value)
	c.record(b.Key, strconv.Itoa(int(b.Value)), err)
	if err != nil {
		c.log.Error().Err(err).Str("button", b.Key).Msg("failed to send command")
		return err
	}

	c.log.Info().Str("button", b.Key).Msg("command sent")
	c.dev.RequestRefresh()
	return nil
}

// StartBatteryTest starts a battery test.
func (c *Controller) StartBatteryTest(ctx context.Context) error {
	return c.Press(ctx, StartBatteryTest)
}

// CancelBatteryTest cancels a running battery test.
func (c *Controller) CancelBatteryTest(ctx context.Context) error {
	return c.Press(ctx, CancelBatteryTest)
}

// SetDelay writes seconds to the timer, MSB word first, and caches it.
func (c *Controller) SetDelay(ctx context.Context, d Delay, seconds int) error {
	if seconds < MinDelay || seconds > MaxDelay {
		return fmt.Errorf("%w: %d not in %d..%d", ErrDelayRange, seconds, MinDelay, MaxDelay)
	}

	msb, lsb := codec.Split32(uint32(seconds))
	c.log.Debug().
		Str("delay", d.Key).
		Int("seconds", seconds).
		Uint16("msb", msb).
		Uint16("lsb", lsb).
		Msg("setting delay")

	err := c.dev.WriteRegisters(ctx, d.Address, []uint16{msb, lsb})
	c.record(d.Key, strconv.Itoa(seconds), err)
	if err != nil {
		c.log.Error().Err(err).Str("delay", d.Key).Int("seconds", seconds).Msg("failed to set delay")
		return err
	}

	c.store(d, uint32(seconds))
	c.log.Info().Str("delay", d.Key).Int("seconds", seconds).Msg("delay set")
	return nil
}

// ReadDelay reads the timer from the device and caches it.
func (c *Controller) ReadDelay(ctx context.Context, d Delay) (uint32, error) {
	regs, err := c.dev.ReadRegisters(ctx, d.Address, register.DelayWords)
	if err != nil {
		return 0, err
	}
	if len(regs) < int(register.DelayWords) {
		return 0, fmt.Errorf("control: %s: short read of %d words", d.Key, len(regs))
	}
	v := codec.Join32(regs[0], regs[1])
	c.store(d, v)
	return v, nil
}

// LoadDelays reads every timer once, typically right after startup.
func (c *Controller) LoadDelays(ctx context.Context) error {
	var errs []error
	for _, d := range Delays {
		if _, err := c.ReadDelay(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Key, err))
		}
	}
	return errors.Join(errs...)
}

// Delay returns the cached timer value, if one has been read or written.
func (c *Controller) Delay(d Delay) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.delays[d.Key]
	return v, ok
}

func (c *Controller) store(d Delay, v uint32) {
	c.mu.Lock()
	c.delays[d.Key] = v
	c.mu.Unlock()
}

func (c *Controller) record(key, value string, err error) {
	if c.sink == nil {
		return
	}
	e := eventlog.Event{
		At:   time.Now(),
		Kind: eventlog.KindCommand,
		Key:  key,
		To:   value,
	}
	if err != nil {
		e.Detail = err.Error()
	} else {
		e.Detail = "ok"
	}
	c.sink.Record(e)
}
