package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestUpstreamMetricsObserve(t *testing.T) {
	m := NewUpstreamMetrics(prometheus.NewRegistry())
	m.ObserveRequest("/doctors", "200", 0.25)
	m.ObserveRequest("/doctors", "500", 0.1)
}

func TestChatMetricsObserve(t *testing.T) {
	m := NewChatMetrics(prometheus.NewRegistry())
	m.ObserveTurn("pick_slot")
	m.ObserveBooking("created")
	m.ObserveBooking("rejected")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var up *UpstreamMetrics
	var chat *ChatMetrics
	up.ObserveRequest("/doctors", "200", 0.1)
	chat.ObserveTurn("confirm")
	chat.ObserveBooking("created")
}
