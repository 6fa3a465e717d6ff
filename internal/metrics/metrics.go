// Package metrics exposes bridge counters on a dedicated prometheus registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"
	"github.com/berfenger/yeelightpro2mqtt/pkg/regmap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yeelightpro"

type Metrics struct {
	registry       *prometheus.Registry
	InboundUpdates *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	Rejected       *prometheus.CounterVec
	FeatureChanges *prometheus.CounterVec
	SendDuration   *prometheus.HistogramVec
	ModbusDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InboundUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_updates_total",
			Help:      "Device property updates received",
		}, []string{"device"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Entity commands handled, by kind and result",
		}, []string{"device", "kind", "result"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Entity commands refused without a device write",
		}, []string{"device", "kind"}),
		FeatureChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_changes_total",
			Help:      "Entity capability set changes after construction",
		}, []string{"device", "entity"}),
		SendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Device property write round trip",
			Buckets:   prometheus.DefBuckets,
		}, []string{"device", "outcome"}),
		ModbusDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_operation_duration_seconds",
			Help:      "Modbus TCP register operations",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.InboundUpdates,
		m.Commands,
		m.Rejected,
		m.FeatureChanges,
		m.SendDuration,
		m.ModbusDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CommandResult labels a command outcome for the commands counter.
func CommandResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// InstrumentSender records the duration and outcome of every write.
func (m *Metrics) InstrumentSender(deviceId string, sender port.Sender) port.Sender {
	return port.SenderFunc(func(ctx context.Context, props domain.Props) (domain.SendOutcome, error) {
		start := time.Now()
		outcome, err := sender.SendProps(ctx, props)
		label := outcome
		if err != nil {
			label = domain.SendFailed
		}
		m.SendDuration.WithLabelValues(deviceId, label.String()).Observe(time.Since(start).Seconds())
		return outcome, err
	})
}

// ModbusInstrument feeds register operation timings into ModbusDuration.
func (m *Metrics) ModbusInstrument() *regmap.ModbusInstrument {
	return &regmap.ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.ModbusDuration.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}
