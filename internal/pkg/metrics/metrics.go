package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every simulator metric. It is served by Handler.
var Registry = prometheus.NewRegistry()

var (
	// BrokerConnected is 1 while the MQTT connection is up.
	BrokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ven_broker_connected",
			Help: "Whether the VEN is connected to the MQTT broker (1=connected, 0=not connected).",
		},
	)

	// PowerKW is the simulated aggregate draw.
	PowerKW = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ven_power_kw",
			Help: "Current aggregate power draw of the simulated device in kW.",
		},
	)

	// BasePowerKW is the uncurtailed aggregate draw.
	BasePowerKW = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ven_base_power_kw",
			Help: "Uncurtailed base load of the simulated device in kW.",
		},
	)

	// ShedKW is the shed achieved by the active event.
	ShedKW = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ven_shed_kw",
			Help: "Power currently shed by the active DR event in kW.",
		},
	)

	// EventActive is 1 while a DR event is being executed.
	EventActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ven_event_active",
			Help: "Whether a DR event is active (1) or not (0).",
		},
	)

	// CommandsTotal counts handled commands.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ven_commands_total",
			Help: "Total number of commands handled by the VEN.",
		},
		[]string{"op", "status"}, // status: ok/error
	)

	// PublishTotal counts outbound messages.
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ven_publish_total",
			Help: "Total number of messages published by the VEN.",
		},
		[]string{"channel", "result"}, // result: success/failed
	)

	// PublishLatency observes how long a publish takes to be acknowledged.
	PublishLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ven_publish_latency_seconds",
			Help:    "Latency of publishing a message to the broker.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// RecordedTotal counts messages consumed by the recorder.
	RecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ven_recorder_messages_total",
			Help: "Total number of VEN messages consumed by the recorder.",
		},
		[]string{"table", "result"}, // result: stored/invalid/failed
	)

	// PurgedRows counts rows removed by retention.
	PurgedRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ven_recorder_purged_rows_total",
			Help: "Total number of recorded rows deleted by the retention policy.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		BrokerConnected,
		PowerKW,
		BasePowerKW,
		ShedKW,
		EventActive,
		CommandsTotal,
		PublishTotal,
		PublishLatency,
		RecordedTotal,
		PurgedRows,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObservePower records the aggregate power figures of a telemetry tick.
func ObservePower(power, base, shed float64, eventActive bool) {
	PowerKW.Set(power)
	BasePowerKW.Set(base)
	ShedKW.Set(shed)
	if eventActive {
		EventActive.Set(1)
	} else {
		EventActive.Set(0)
	}
}
