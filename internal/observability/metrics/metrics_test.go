package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *DeliveryMetrics
	m.ObserveSend("gmail", "sent", false)
	m.ObserveRefresh("outlook", "failed")
	m.ObserveRenderDuration("ok", 0.2)
}

func TestObserveSendRegistersSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeliveryMetrics(reg)

	m.ObserveSend("gmail", "sent", true)
	m.ObserveRefresh("gmail", "refreshed")
	m.ObserveRenderDuration("ok", 0.05)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"veldmed_delivery_sends_total",
		"veldmed_delivery_token_refreshes_total",
		"veldmed_delivery_render_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("expected metric family %s, got %v", want, names)
		}
	}
}
