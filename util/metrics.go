package util

import (
	"net/http"

	"github.com/elijahnyp/pjlink_controller/pjlink"
	"github.com/elijahnyp/pjlink_controller/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var powerStates = []pjlink.PowerState{
	pjlink.PowerUnknown,
	pjlink.PowerOff,
	pjlink.PowerOn,
	pjlink.PowerWarmingUp,
	pjlink.PowerCoolingDown,
	pjlink.PowerUnavailable,
	pjlink.PowerFailure,
}

// Prometheus metrics
var (
	projectorConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pjlink_projector_connected",
			Help: "1 if the projector socket is connected, 0 otherwise",
		},
		[]string{"projector"},
	)

	projectorPower = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pjlink_projector_power_state",
			Help: "1 for the power state the projector last reported, 0 for the others",
		},
		[]string{"projector", "state"},
	)

	projectorLampHours = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pjlink_projector_lamp_hours",
			Help: "Lamp hours last reported by the projector",
		},
		[]string{"projector"},
	)

	projectorCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pjlink_commands_total",
			Help: "Commands submitted to projectors by purpose and result",
		},
		[]string{"projector", "purpose", "result"},
	)

	projectorTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pjlink_connection_transitions_total",
			Help: "Connection state transitions by target state",
		},
		[]string{"projector", "state"},
	)
)

// MetricsRegistry holds only the projector metrics, no Go runtime collectors.
var MetricsRegistry = newMetricsRegistry()

func newMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(projectorConnected)
	registry.MustRegister(projectorPower)
	registry.MustRegister(projectorLampHours)
	registry.MustRegister(projectorCommands)
	registry.MustRegister(projectorTransitions)
	return registry
}

func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(MetricsRegistry, promhttp.HandlerOpts{})
}

// ObserveStatus copies a projector status into the gauges.
func ObserveStatus(s state.Status) {
	if s.Connected {
		projectorConnected.WithLabelValues(s.Name).Set(1)
	} else {
		projectorConnected.WithLabelValues(s.Name).Set(0)
	}
	for _, p := range powerStates {
		v := 0.0
		if p.String() == s.Power {
			v = 1
		}
		projectorPower.WithLabelValues(s.Name, p.String()).Set(v)
	}
	if s.LampHours != nil {
		projectorLampHours.WithLabelValues(s.Name).Set(float64(*s.LampHours))
	}
}

func RecordCommand(projector string, cmd pjlink.Command, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	projectorCommands.WithLabelValues(projector, cmd.Purpose.String(), result).Inc()
}

func RecordTransition(projector string, s pjlink.ConnectionState) {
	projectorTransitions.WithLabelValues(projector, s.String()).Inc()
}

// ForgetProjector drops every series of a projector that left the model.
func ForgetProjector(projector string) {
	labels := prometheus.Labels{"projector": projector}
	projectorConnected.DeletePartialMatch(labels)
	projectorPower.DeletePartialMatch(labels)
	projectorLampHours.DeletePartialMatch(labels)
	projectorCommands.DeletePartialMatch(labels)
	projectorTransitions.DeletePartialMatch(labels)
}
