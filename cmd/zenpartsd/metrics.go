package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenparts_sink_writes_total",
			Help: "Sink writes by sink type and result.",
		},
		[]string{"sink", "result"},
	)

	preferenceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenparts_preference_requests_total",
			Help: "Client preference requests by operation and result.",
		},
		[]string{"op", "result"},
	)

	panelWidgets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zenparts_panel_widgets",
			Help: "Widgets on the last built panel by state.",
		},
		[]string{"state"},
	)

	stateSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenparts_state_subscribers",
			Help: "Connected state websocket subscribers.",
		},
	)

	stateFramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenparts_state_frames_dropped_total",
			Help: "State frames not delivered, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(sinkWrites, preferenceRequests, panelWidgets, stateSubscribers, stateFramesDropped)
}

func recordSinkWrite(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sinkWrites.WithLabelValues(sink, result).Inc()
}

func recordRequest(op string, err error) {
	preferenceRequests.WithLabelValues(op, requestResult(err)).Inc()
}

func requestResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownPreference):
		return "unknown"
	case errors.Is(err, ErrPreferenceDisabled):
		return "disabled"
	case errors.Is(err, ErrInvalidValue), errors.Is(err, ErrNotClickable):
		return "invalid"
	default:
		return "error"
	}
}

func recordPanelWidgets(p PanelState) {
	var enabled, disabled, removed float64
	for _, pref := range p.Prefs {
		switch {
		case pref.Removed:
			removed++
		case pref.Enabled:
			enabled++
		default:
			disabled++
		}
	}
	panelWidgets.WithLabelValues("enabled").Set(enabled)
	panelWidgets.WithLabelValues("disabled").Set(disabled)
	panelWidgets.WithLabelValues("removed").Set(removed)
}
