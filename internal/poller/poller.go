// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Client abstracts the Modbus operations the poller needs.
// The poller depends on geometry only.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	WriteRegister(addr, value uint16) error                  // FC 6
	WriteRegisters(addr uint16, values []uint16) error       // FC 16
	Close() error
}

// Factory opens a new client. ONE attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Endpoint string
	Interval time.Duration

	// RefetchIdentityOnReconnect clears the identity cache whenever the
	// session is dropped.
	RefetchIdentityOnReconnect bool
}

// Poller owns the single session with one UPS.
//
// Disconnected: client == nil. The next operation calls factory.
// Connected: client != nil. Any transport failure closes and discards it.
type Poller struct {
	cfg     Config
	factory Factory
	store   *status.Store
	log     zerolog.Logger

	// mu serializes every exchange with the device.
	mu     sync.Mutex
	client Client

	info     sync.RWMutex
	identity status.Identity
	rating   status.Rating
	fetched  bool

	refresh chan struct{}
}

// New creates a poller with immutable config. No IO.
func New(cfg Config, factory Factory, store *status.Store, logger zerolog.Logger) (*Poller, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("poller: endpoint required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if factory == nil {
		return nil, errors.New("poller: client factory required")
	}
	if store == nil {
		return nil, errors.New("poller: store required")
	}
	return &Poller{
		cfg:      cfg,
		factory:  factory,
		store:    store,
		log:      logger,
		identity: status.DefaultIdentity(),
		refresh:  make(chan struct{}, 1),
	}, nil
}

// Device returns the cached identity and rating, and whether they were read
// from the device.
func (p *Poller) Device() (status.Identity, status.Rating, bool) {
	p.info.RLock()
	defer p.info.RUnlock()
	return p.identity, p.rating, p.fetched
}

// Close drops the session. The poller may be used again afterwards.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnect()
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle and leaves the store untouched.
func (p *Poller) PollOnce(ctx context.Context) Result {
	res := Result{At: time.Now()}

	if err := ctx.Err(); err != nil {
		res.Err = &UpdateError{Err: err}
		return res
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	snap, err := p.cycle(res.At)
	if err != nil {
		p.log.Warn().Err(err).Msg("poll cycle failed")
		_ = p.disconnect()
		res.Err = &UpdateError{Err: err}
		return res
	}

	// Commit only if all reads succeeded
	res.Snapshot = snap
	res.Previous = p.store.Publish(snap)
	return res
}

// Poll runs one cycle and returns its snapshot.
func (p *Poller) Poll(ctx context.Context) (*status.Snapshot, error) {
	res := p.PollOnce(ctx)
	return res.Snapshot, res.Err
}

func (p *Poller) cycle(at time.Time) (*status.Snapshot, error) {
	c, err := p.ensureConnected()
	if err != nil {
		return nil, err
	}

	p.fetchDevice(c)

	warnings, err := p.readBlock(c, register.Warnings)
	if err != nil {
		return nil, err
	}
	st, err := p.readBlock(c, register.Status)
	if err != nil {
		return nil, err
	}
	meas, err := p.readBlock(c, register.Measurements)
	if err != nil {
		return nil, err
	}

	return decodeCycle(at, warnings, st, meas), nil
}

// fetchDevice reads identity and rating once per fetch window.
// Failures are logged and skipped; they never fail the cycle.
func (p *Poller) fetchDevice(c Client) {
	p.info.RLock()
	done := p.fetched
	p.info.RUnlock()
	if done {
		return
	}

	regs, err := p.readBlock(c, register.Identifiers)
	if err != nil {
		p.log.Warn().Err(err).Msg("device identifiers read failed")
		return
	}
	id := decodeIdentity(regs)

	// A device exception means no rated data on this model; keep the zero
	// rating. A transport failure leaves everything for the next cycle.
	rated, rerr := p.readBlock(c, register.Rated)
	if rerr != nil {
		var ce *ConnectionError
		if errors.As(rerr, &ce) {
			p.log.Warn().Err(rerr).Msg("rated data read failed, retrying next cycle")
			return
		}
		p.log.Warn().Err(rerr).Msg("rated data read failed")
	}

	p.info.Lock()
	p.identity = id
	if rerr == nil {
		p.rating = decodeRating(rated)
	}
	p.fetched = true
	p.info.Unlock()

	p.log.Debug().
		Str("manufacturer", id.Manufacturer).
		Str("model", id.Model).
		Str("firmware", id.Firmware).
		Str("serial", id.Serial).
		Msg("device info")
}

func (p *Poller) readBlock(c Client, b register.Block) ([]uint16, error) {
	return p.readAt(c, "read "+b.Name, b.Base, b.Words)
}

func (p *Poller) readAt(c Client, op string, addr, qty uint16) ([]uint16, error) {
	regs, err := c.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, ioError(p.cfg.Endpoint, op, addr, err)
	}
	if len(regs) < int(qty) {
		return nil, &ProtocolError{
			Op:      op,
			Address: addr,
			Err:     fmt.Errorf("short response: got %d words, want %d", len(regs), qty),
		}
	}
	return regs[:qty], nil
}

// ---- session state ----

func (p *Poller) ensureConnected() (Client, error) {
	if p.client != nil {
		return p.client, nil
	}
	c, err := p.factory()
	if err != nil {
		return nil, &ConnectionError{Endpoint: p.cfg.Endpoint, Op: "connect", Err: err}
	}
	p.client = c
	p.log.Info().Str("endpoint", p.cfg.Endpoint).Msg("connected")
	return c, nil
}

func (p *Poller) disconnect() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil

	if p.cfg.RefetchIdentityOnReconnect {
		p.info.Lock()
		p.fetched = false
		p.info.Unlock()
	}

	p.log.Info().Str("endpoint", p.cfg.Endpoint).Msg("disconnected")
	return err
}
