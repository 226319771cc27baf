package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RequestsTotal.WithLabelValues("users", "GET", "200").Inc()
	c.RequestsTotal.WithLabelValues("users", "GET", "200").Inc()
	c.InputErrorsTotal.WithLabelValues("users").Inc()
	c.ConfigReloads.Inc()

	if got := testutil.ToFloat64(c.RequestsTotal.WithLabelValues("users", "GET", "200")); got != 2 {
		t.Errorf("requests_total = %v", got)
	}
	if got := testutil.ToFloat64(c.InputErrorsTotal.WithLabelValues("users")); got != 1 {
		t.Errorf("input_errors_total = %v", got)
	}
	if got := testutil.ToFloat64(c.ConfigReloads); got != 1 {
		t.Errorf("config_reloads_total = %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("no metric families registered")
	}
}

func TestInFlightGauge(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.RequestsInFlight.Inc()
	c.RequestsInFlight.Inc()
	c.RequestsInFlight.Dec()

	if got := testutil.ToFloat64(c.RequestsInFlight); got != 1 {
		t.Errorf("requests_in_flight = %v", got)
	}
}
