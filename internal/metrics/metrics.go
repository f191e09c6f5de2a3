// Package metrics exposes the latest UPS snapshot and poll counters to
// Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

const namespace = "ever_ups"

// DeviceSource exposes the cached identity of the UPS.
type DeviceSource interface {
	Device() (status.Identity, status.Rating, bool)
}

// Metrics reads the snapshot store at scrape time. Poll outcomes and link
// state are pushed by the orchestrator.
type Metrics struct {
	store *status.Store
	dev   DeviceSource

	measurement *prometheus.Desc
	warning     *prometheus.Desc
	statusCode  *prometheus.Desc
	info        *prometheus.Desc
	rated       *prometheus.Desc
	lastSuccess *prometheus.Desc

	polls          *prometheus.CounterVec
	linkHealth     prometheus.Gauge
	secondsInError prometheus.Gauge
}

// Enum codes exported as ever_ups_status_code{field}.
var statusFields = []string{
	"ups_type", "operating_mode", "input_phases", "output_phases",
	"battery_status", "test_result", "input_source", "bypass_phases", "abm_status",
}

// Numeric snapshot fields exported as ever_ups_measurement{field}.
var measurementFields = []string{
	"temperature", "input_frequency",
	"input_voltage_l1", "input_voltage_l2", "input_voltage_l3",
	"output_voltage_l1", "output_voltage_l2", "output_voltage_l3",
	"output_current_l1", "output_current_l2", "output_current_l3",
	"active_power_l1", "active_power_l2", "active_power_l3", "active_power_total",
	"apparent_power_l1", "apparent_power_l2", "apparent_power_l3", "apparent_power_total",
	"load_l1", "load_l2", "load_l3", "load_total",
	"runtime_minutes", "runtime_seconds", "runtime_remaining",
	"battery_charge", "battery_voltage", "battery_voltage_pos", "battery_voltage_neg",
	"bypass_frequency", "bypass_voltage",
}

// New creates the collectors. Nothing is registered yet.
func New(store *status.Store, dev DeviceSource) (*Metrics, error) {
	if store == nil {
		return nil, errors.New("metrics: store required")
	}
	if dev == nil {
		return nil, errors.New("metrics: device source required")
	}
	return &Metrics{
		store: store,
		dev:   dev,

		measurement: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "measurement"),
			"Decoded measurement from the last successful poll. Absent values are not exported.",
			[]string{"field"}, nil,
		),
		warning: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "warning"),
			"Warning flag from the last successful poll (1 = raised).",
			[]string{"flag"}, nil,
		),
		statusCode: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "status_code"),
			"Raw status enum code from the last successful poll.",
			[]string{"field"}, nil,
		),
		info: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "device_info"),
			"Device identity, always 1.",
			[]string{"manufacturer", "model", "firmware", "serial"}, nil,
		),
		rated: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rated"),
			"Nameplate rating read from the device.",
			[]string{"field"}, nil,
		),
		lastSuccess: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_success_timestamp_seconds"),
			"Unix time of the last successful poll.",
			nil, nil,
		),

		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		linkHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_health",
			Help:      "Link health code (0 unknown, 1 ok, 2 error).",
		}),
		secondsInError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_seconds_in_error",
			Help:      "Seconds since the link left the ok state.",
		}),
	}, nil
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m, m.polls, m.linkHealth, m.secondsInError} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe counts one poll outcome.
func (m *Metrics) Observe(res poller.Result) {
	if res.Err != nil {
		m.polls.WithLabelValues("error").Inc()
		return
	}
	m.polls.WithLabelValues("ok").Inc()
}

// SetLink records the current link state.
func (m *Metrics) SetLink(l status.Link) {
	m.linkHealth.Set(float64(l.Health))
	m.secondsInError.Set(float64(l.SecondsInError))
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.measurement
	ch <- m.warning
	ch <- m.statusCode
	ch <- m.info
	ch <- m.rated
	ch <- m.lastSuccess
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	id, rating, fetched := m.dev.Device()
	ch <- prometheus.MustNewConstMetric(m.info, prometheus.GaugeValue, 1,
		id.Manufacturer, id.Model, id.Firmware, id.Serial)

	if fetched {
		for field, v := range map[string]float64{
			"apparent_power_va": float64(rating.ApparentPower),
			"active_power_w":    float64(rating.ActivePower),
			"battery_voltage":   rating.BatteryVoltage,
			"output_voltage":    rating.OutputVoltage,
			"output_frequency":  rating.OutputFrequency,
		} {
			ch <- prometheus.MustNewConstMetric(m.rated, prometheus.GaugeValue, v, field)
		}
	}

	snap := m.store.Snapshot()
	if snap == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(m.lastSuccess, prometheus.GaugeValue, float64(snap.At.UnixNano())/1e9)

	fields := snap.Fields()
	for _, name := range measurementFields {
		if v, ok := status.Numeric(fields[name]); ok {
			ch <- prometheus.MustNewConstMetric(m.measurement, prometheus.GaugeValue, v, name)
		}
	}
	for _, name := range statusFields {
		if v, ok := status.Numeric(fields[name]); ok {
			ch <- prometheus.MustNewConstMetric(m.statusCode, prometheus.GaugeValue, v, name)
		}
	}
	for _, f := range register.Flags {
		v := 0.0
		if snap.Flag(f) {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(m.warning, prometheus.GaugeValue, v, f.Key)
	}
}
