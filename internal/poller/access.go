package poller

import (
	"context"
	"fmt"
)

// On-demand register access. Each call holds the session lock for one
// exchange. Device exceptions leave the session open; transport errors drop it.

// ReadRegisters reads count holding registers starting at address.
func (p *Poller) ReadRegisters(ctx context.Context, address, count uint16) ([]uint16, error) {
	if err := checkRange(address, count, MaxReadWords); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.ensureConnected()
	if err != nil {
		p.log.Error().Err(err).Msg("read registers: connect failed")
		return nil, err
	}

	regs, err := p.readAt(c, "read registers", address, count)
	if err != nil {
		p.log.Error().Err(err).Msgf("failed to read registers 0x%04X", address)
		p.failed(err)
		return nil, err
	}
	return regs, nil
}

// WriteRegister writes one holding register.
func (p *Poller) WriteRegister(ctx context.Context, address, value uint16) error {
	return p.write(ctx, "write register", address, 1, func(c Client) error {
		return c.WriteRegister(address, value)
	})
}

// WriteRegisters writes consecutive holding registers starting at address.
func (p *Poller) WriteRegisters(ctx context.Context, address uint16, values []uint16) error {
	return p.write(ctx, "write registers", address, len(values), func(c Client) error {
		return c.WriteRegisters(address, values)
	})
}

func (p *Poller) write(ctx context.Context, op string, address uint16, n int, do func(Client) error) error {
	if n <= 0 || n > MaxWriteWords {
		return fmt.Errorf("%w: %d words", ErrRange, n)
	}
	if err := checkRange(address, uint16(n), MaxWriteWords); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.ensureConnected()
	if err != nil {
		p.log.Error().Err(err).Msgf("%s: connect failed", op)
		return err
	}

	if err := do(c); err != nil {
		err = ioError(p.cfg.Endpoint, op, address, err)
		p.log.Error().Err(err).Msgf("failed to write register 0x%04X", address)
		p.failed(err)
		return err
	}
	return nil
}

// failed drops the session if err came from the transport.
func (p *Poller) failed(err error) {
	if invalidates(err) {
		_ = p.disconnect()
	}
}

func checkRange(address, count uint16, limit int) error {
	if count == 0 || int(count) > limit {
		return fmt.Errorf("%w: count %d not in 1..%d", ErrRange, count, limit)
	}
	if int(address)+int(count) > 0x10000 {
		return fmt.Errorf("%w: 0x%04X+%d past end of address space", ErrRange, address, count)
	}
	return nil
}
