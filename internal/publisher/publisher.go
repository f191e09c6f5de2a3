// Package publisher bridges the UPS to Home Assistant over MQTT: retained
// discovery configs, per-entity state topics and command topics for the
// writable registers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/control"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// brokerClient is the exact contract the publisher uses.
type brokerClient interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// DeviceSource exposes the cached identity of the UPS.
type DeviceSource interface {
	Device() (status.Identity, status.Rating, bool)
}

// Commander executes writes requested on command topics.
type Commander interface {
	Press(ctx context.Context, b control.Button) error
	SetDelay(ctx context.Context, d control.Delay, seconds int) error
	Delay(d control.Delay) (uint32, bool)
}

type Config struct {
	Topics Topics

	// Host is the unique id fallback while the serial number is unknown.
	Host string

	// CommandTimeout bounds one command, lock wait included.
	CommandTimeout time.Duration
}

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"

	commandQueue = 8
)

type command struct {
	key     string
	payload string
}

// Publisher owns all MQTT traffic for one UPS.
type Publisher struct {
	cfg Config
	cli brokerClient
	dev DeviceSource
	ctl Commander
	log zerolog.Logger

	cmds chan command

	mu           sync.Mutex
	state        *stateWriter
	announced    string // DeviceID of the last announced plan
	availability string
	lastSnap     *status.Snapshot
	lastLink     *status.Link
}

// New creates a publisher. No IO.
func New(cfg Config, cli brokerClient, dev DeviceSource, ctl Commander, logger zerolog.Logger) (*Publisher, error) {
	if cli == nil {
		return nil, errors.New("publisher: broker client required")
	}
	if dev == nil {
		return nil, errors.New("publisher: device source required")
	}
	if ctl == nil {
		return nil, errors.New("publisher: commander required")
	}
	if cfg.Topics.Prefix == "" || cfg.Topics.DiscoveryPrefix == "" || cfg.Topics.NodeID == "" {
		return nil, errors.New("publisher: topics incomplete")
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 15 * time.Second
	}
	return &Publisher{
		cfg:   cfg,
		cli:   cli,
		dev:   dev,
		ctl:   ctl,
		log:   logger,
		cmds:  make(chan command, commandQueue),
		state: newStateWriter(cli, cfg.Topics),
	}, nil
}

// Start subscribes to every command topic.
func (p *Publisher) Start() error {
	keys := make([]string, 0, len(control.Buttons)+len(control.Delays))
	for _, b := range control.Buttons {
		keys = append(keys, b.Key)
	}
	for _, d := range control.Delays {
		keys = append(keys, d.Key)
	}

	for _, k := range keys {
		if err := p.cli.Subscribe(p.cfg.Topics.Command(k), p.enqueue); err != nil {
			return fmt.Errorf("publisher: %w", err)
		}
	}
	return nil
}

// Run executes queued commands until ctx is cancelled.
// Commands run here, never on the broker delivery goroutine.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.cmds:
			if err := p.execute(ctx, c); err != nil {
				p.log.Error().Err(err).Str("key", c.key).Str("payload", c.payload).Msg("command failed")
			}
		}
	}
}

// Reconnected re-sends discovery, availability and every known state.
// Call it after the broker session was re-established.
func (p *Publisher) Reconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.announced = ""
	p.availability = ""
	p.state.invalidate()

	if err := p.announce(); err != nil {
		p.log.Error().Err(err).Msg("discovery re-send failed")
	}
	if p.lastLink != nil {
		if err := p.writeLink(*p.lastLink); err != nil {
			p.log.Error().Err(err).Msg("link state re-send failed")
		}
	}
	if p.lastSnap != nil {
		if err := p.state.WriteState(p.values(p.lastSnap)); err != nil {
			p.log.Error().Err(err).Msg("state re-send failed")
		}
	}
}

// Write delivers one poll result.
// A failed cycle publishes nothing: consumers keep the previous state.
func (p *Publisher) Write(res poller.Result) error {
	if res.Err != nil || res.Snapshot == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastSnap = res.Snapshot

	var errs []error
	if err := p.announce(); err != nil {
		errs = append(errs, err)
	}
	if err := p.state.WriteState(p.values(res.Snapshot)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WriteLink publishes link diagnostics and device availability.
func (p *Publisher) WriteLink(l status.Link) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastLink = &l
	return p.writeLink(l)
}

func (p *Publisher) writeLink(l status.Link) error {
	var errs []error

	avail := availabilityOffline
	if l.Health == status.HealthOK {
		avail = availabilityOnline
	}
	if avail != p.availability {
		if err := p.cli.Publish(p.cfg.Topics.Availability(), true, []byte(avail)); err != nil {
			errs = append(errs, fmt.Errorf("publisher: availability: %w", err))
		} else {
			p.availability = avail
		}
	}

	if err := p.state.WriteState(map[string]string{
		KeyLinkHealth:         status.HealthName(l.Health),
		KeyLinkLastErrorCode:  strconv.Itoa(int(l.LastErrorCode)),
		KeyLinkSecondsInError: strconv.Itoa(int(l.SecondsInError)),
	}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// announce publishes the discovery plan when the device identity changed
// since the last successful announcement.
func (p *Publisher) announce() error {
	id, _, _ := p.dev.Device()
	plan := BuildPlan(p.cfg.Topics, id, p.cfg.Host)
	if plan.DeviceID == p.announced {
		return nil
	}

	var errs []string
	for _, a := range plan.Announcements {
		body, err := json.Marshal(a.Config)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", a.Topic, err))
			continue
		}
		if err := p.cli.Publish(a.Topic, true, body); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", a.Topic, err))
		}
	}
	if len(errs) > 0 {
		return errors.New("publisher: discovery: " + strings.Join(errs, " | "))
	}

	p.log.Info().
		Str("device_id", plan.DeviceID).
		Int("entities", len(plan.Announcements)).
		Msg("discovery published")
	p.announced = plan.DeviceID
	// New entities start without state.
	p.state.invalidate()
	return nil
}

// values renders every state topic payload for one snapshot.
func (p *Publisher) values(s *status.Snapshot) map[string]string {
	fields := s.Fields()
	out := make(map[string]string, len(Sensors)+len(register.Flags)+len(control.Delays))

	for _, sn := range Sensors {
		out[sn.Key] = status.FormatValue(fields[sn.Field])
	}
	for _, f := range register.Flags {
		out[f.Key] = status.FormatValue(s.Flag(f))
	}
	for _, d := range control.Delays {
		if v, ok := p.ctl.Delay(d); ok {
			out[d.Key] = strconv.FormatUint(uint64(v), 10)
		}
	}
	return out
}

// enqueue runs on the broker delivery goroutine. Never blocks.
func (p *Publisher) enqueue(topic string, payload []byte) {
	key, ok := p.cfg.Topics.commandKey(topic)
	if !ok {
		p.log.Warn().Str("topic", topic).Msg("ignoring message on unexpected topic")
		return
	}
	select {
	case p.cmds <- command{key: key, payload: strings.TrimSpace(string(payload))}:
	default:
		p.log.Warn().Str("key", key).Msg("command queue full, dropping command")
	}
}

func (p *Publisher) execute(ctx context.Context, c command) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
	defer cancel()

	if b, ok := control.ButtonByKey(c.key); ok {
		if c.payload != payloadPress {
			return fmt.Errorf("publisher: %s: unexpected payload %q", c.key, c.payload)
		}
		return p.ctl.Press(ctx, b)
	}

	d, ok := control.DelayByKey(c.key)
	if !ok {
		return fmt.Errorf("publisher: unknown command %q", c.key)
	}

	seconds, err := parseSeconds(c.payload)
	if err != nil {
		return fmt.Errorf("publisher: %s: %w", c.key, err)
	}
	if err := p.ctl.SetDelay(ctx, d, seconds); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.WriteState(map[string]string{d.Key: strconv.Itoa(seconds)})
}

// parseSeconds accepts "30" and the "30.0" form number entities send.
func parseSeconds(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid seconds %q", s)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("seconds %q out of range", s)
	}
	return int(f), nil
}
