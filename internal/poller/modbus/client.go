// internal/poller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"
)

// Client implements poller.Client over one Modbus TCP connection.
// This adapter is geometry-only: it packs words into frames and unpacks
// responses. It does not serialize callers; the poller does.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	SlaveID  uint8
	Timeout  time.Duration

	// FrameLogger receives raw frame dumps at debug level when set.
	FrameLogger *zerolog.Logger
}

// Dial creates a connected Modbus TCP client. One attempt, no retries.
func Dial(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.SlaveID
	if cfg.FrameLogger != nil {
		h.Logger = log.New(frameWriter{l: *cfg.FrameLogger}, "", 0)
	}

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ---- poller.Client interface ----

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, classify(err)
	}
	if len(raw) != int(qty)*2 {
		return nil, fmt.Errorf("modbus: read-registers payload size %d, want %d", len(raw), int(qty)*2)
	}
	return unpackRegisters(raw), nil
}

func (c *Client) WriteRegister(addr, value uint16) error {
	_, err := c.client.WriteSingleRegister(addr, value)
	return classify(err)
}

func (c *Client) WriteRegisters(addr uint16, values []uint16) error {
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(values)), packRegisters(values))
	return classify(err)
}

// ---- errors ----

// ExceptionError is an exception response returned by the device.
// The connection itself is still usable after one.
type ExceptionError struct {
	Function  uint8
	Exception uint8
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus exception: fc=%d code=%d", e.Function, e.Exception)
}

// Code returns the raw exception code.
func (e *ExceptionError) Code() uint16 { return uint16(e.Exception) }

func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return &ExceptionError{
			Function:  me.FunctionCode &^ 0x80,
			Exception: me.ExceptionCode,
		}
	}
	return err
}

// ---- helpers (pure geometry) ----

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

// frameWriter adapts the transport's *log.Logger output to zerolog.
type frameWriter struct {
	l zerolog.Logger
}

func (w frameWriter) Write(p []byte) (int, error) {
	w.l.Debug().Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
