// cmd/upsbridge/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/api"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/config"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/control"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/eventlog"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/mcptools"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/metrics"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/publisher"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/publisher/mqtt"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

var version = "dev"

func main() {
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		boot.Fatal().Msg("usage: upsbridge <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config env override failed")
	}
	if err := config.Validate(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	logger := newLogger(cfg.Log)
	logger.Info().
		Str("version", version).
		Str("endpoint", cfg.Device.Endpoint()).
		Dur("interval", cfg.Poll.Interval()).
		Msg("starting ever ups bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// wg tracks everything that may record events; the event writer runs
	// on its own context and stops only after they are all done.
	var wg, eventsWG sync.WaitGroup
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()

	store := &status.Store{}

	// --------------------
	// Poller
	// --------------------

	p, err := poller.Build(*cfg, store, component(logger, "poller"))
	if err != nil {
		logger.Fatal().Err(err).Msg("poller build failed")
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn().Err(err).Msg("poller close failed")
		}
	}()

	// --------------------
	// Event log (optional)
	// --------------------

	var (
		db     *eventlog.Store
		events *eventlog.Writer
		sink   control.Sink
	)
	if cfg.EventLog.Enabled {
		db, err = eventlog.Open(cfg.EventLog.Path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.EventLog.Path).Msg("event log open failed")
		}
		defer db.Close()

		events = eventlog.NewWriter(db, 64, component(logger, "eventlog"))
		sink = events
		eventsWG.Add(1)
		go func() {
			defer eventsWG.Done()
			events.Run(eventsCtx)
		}()
	}

	// --------------------
	// Control
	// --------------------

	ctl := control.New(p, sink, component(logger, "control"))

	// Best effort: an unreachable UPS at startup only leaves the cache empty.
	wg.Add(1)
	go func() {
		defer wg.Done()
		lctx, cancel := context.WithTimeout(ctx, 2*cfg.Device.Timeout())
		defer cancel()
		if err := ctl.LoadDelays(lctx); err != nil {
			logger.Warn().Err(err).Msg("initial delay read failed")
		}
	}()

	// --------------------
	// MQTT publisher (optional)
	// --------------------

	var (
		pub    *publisher.Publisher
		broker *mqtt.Client
	)
	topics := publisher.Topics{
		Prefix:          cfg.MQTT.TopicPrefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		NodeID:          cfg.MQTT.NodeID,
	}
	if cfg.MQTT.Enabled {
		mlog := component(logger, "mqtt")
		broker, err = mqtt.Dial(mqtt.Config{
			Broker:    cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			WillTopic: topics.Availability(),
		}, mlog)
		if err != nil {
			logger.Fatal().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt connect failed")
		}
		defer func() {
			if err := broker.Close(topics.Availability()); err != nil {
				logger.Warn().Err(err).Msg("mqtt close failed")
			}
		}()

		pub, err = publisher.New(publisher.Config{
			Topics:         topics,
			Host:           cfg.Device.Host,
			CommandTimeout: 2 * cfg.Device.Timeout(),
		}, broker, p, ctl, component(logger, "publisher"))
		if err != nil {
			logger.Fatal().Err(err).Msg("publisher build failed")
		}
		if err := pub.Start(); err != nil {
			logger.Fatal().Err(err).Msg("publisher start failed")
		}
		broker.OnConnect(pub.Reconnected)

		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Run(ctx)
		}()
	}

	// --------------------
	// Metrics + HTTP API (optional)
	// --------------------

	var m *metrics.Metrics
	var srv *api.Server
	if cfg.HTTP.Enabled {
		opts := api.Options{
			Listen: cfg.HTTP.Listen,
			Token:  cfg.HTTP.Token,
		}

		if cfg.HTTP.Metrics {
			m, err = metrics.New(store, p)
			if err != nil {
				logger.Fatal().Err(err).Msg("metrics build failed")
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			if err := m.Register(reg); err != nil {
				logger.Fatal().Err(err).Msg("metrics register failed")
			}
			opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		}

		if cfg.HTTP.MCP {
			mcpServer := mcptools.NewServer(version, store, p, ctl, component(logger, "mcp"))
			opts.MCP = server.NewStreamableHTTPServer(mcpServer)
		}

		if db != nil {
			opts.Events = db
		}

		srv = api.NewServer(opts, store, p, ctl, component(logger, "api"))
		if err := srv.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("http server start failed")
		}
	}

	// --------------------
	// Orchestrator (runner-owned link state + 1Hz seconds ticker)
	// --------------------

	out := make(chan poller.Result)

	o := &orchestrator{
		store:   store,
		pub:     pub,
		metrics: m,
		events:  events,
		log:     component(logger, "orchestrator"),
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		o.run(ctx, out)
	}()
	go func() {
		defer wg.Done()
		p.Run(ctx, out)
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if srv != nil {
		if err := srv.Stop(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("http server stop failed")
		}
	}
	drain(&wg, stopEvents, &eventsWG)
	logger.Info().Msg("stopped")
}

// drain waits for every event producer, then stops the event writer and
// waits for its final flush.
func drain(producers *sync.WaitGroup, stopEvents context.CancelFunc, events *sync.WaitGroup) {
	producers.Wait()
	stopEvents()
	events.Wait()
}

// orchestrator folds poll results into link health and fans them out to the
// optional consumers. All fields except store may be nil.
type orchestrator struct {
	store   *status.Store
	pub     *publisher.Publisher
	metrics *metrics.Metrics
	events  *eventlog.Writer
	log     zerolog.Logger

	link status.Link
}

func (o *orchestrator) run(ctx context.Context, out <-chan poller.Result) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Default link state on start.
	o.emitLink()

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-out:
			o.handle(res)

		case <-secTicker.C:
			// Tick 1 Hz while not OK.
			if o.link.Tick() {
				o.emitLink()
			}
		}
	}
}

func (o *orchestrator) handle(res poller.Result) {
	prev := o.link
	if o.link.Observe(res.Err) {
		o.emitLink()
	}
	if prev.Health != o.link.Health {
		if o.link.Health == status.HealthOK {
			o.log.Info().Msg("UPS link ok")
		} else {
			o.log.Warn().Err(res.Err).Uint16("code", o.link.LastErrorCode).Msg("UPS link lost")
		}
		if o.events != nil {
			o.events.Record(eventlog.LinkEvent(res.At, prev, o.link, res.Err))
		}
	} else if res.Err != nil {
		o.log.Debug().Err(res.Err).Msg("poll failed")
	}

	if o.metrics != nil {
		o.metrics.Observe(res)
	}
	if res.Err != nil {
		return
	}

	if o.pub != nil {
		if err := o.pub.Write(res); err != nil {
			o.log.Error().Err(err).Msg("state publish failed")
		}
	}
	if o.events != nil {
		for _, e := range eventlog.Diff(res.Previous, res.Snapshot) {
			o.events.Record(e)
		}
	}
}

func (o *orchestrator) emitLink() {
	o.store.SetLink(o.link)
	if o.metrics != nil {
		o.metrics.SetLink(o.link)
	}
	if o.pub != nil {
		if err := o.pub.WriteLink(o.link); err != nil {
			o.log.Error().Err(err).Msg("link publish failed")
		}
	}
}

func newLogger(c config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if c.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Compile-time checks for the surfaces wired above.
var (
	_ api.EventSource = (*eventlog.Store)(nil)
	_ control.Sink    = (*eventlog.Writer)(nil)
	_ http.Handler    = (*server.StreamableHTTPServer)(nil)
)
