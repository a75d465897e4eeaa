package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestStoreMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)
	m.ObserveRefresh("patients", nil)
	m.ObserveRefresh("patients", errors.New("boom"))
	m.ObserveMutation("append_prescription", nil)
	m.ObserveMalformedTimestamp()

	if got := counterValue(t, reg, "medisync_records_refresh_total", map[string]string{"collection": "patients", "status": "error"}); got != 1 {
		t.Fatalf("expected 1 failed refresh, got %v", got)
	}
	if got := counterValue(t, reg, "medisync_records_malformed_timestamp_total", nil); got != 1 {
		t.Fatalf("expected 1 malformed timestamp, got %v", got)
	}
}

func TestWorkflowMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.ObserveReconcile("doctor_not_matched")
	m.ObserveCommit(true, nil)
	m.ObserveBooking(errors.New("invalid"))

	if got := counterValue(t, reg, "medisync_suggest_commit_total", map[string]string{"status": "ok", "promoted": "true"}); got != 1 {
		t.Fatalf("expected 1 promoted commit, got %v", got)
	}
}

func TestCollaboratorMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCollaboratorMetrics(reg)
	m.Observe("extraction", 0.4, nil)
	if got := counterValue(t, reg, "medisync_collaborator_calls_total", map[string]string{"collaborator": "extraction"}); got != 1 {
		t.Fatalf("expected 1 call, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var s *StoreMetrics
	s.ObserveRefresh("patients", nil)
	s.ObserveMutation("add_patient", nil)
	s.ObserveMalformedTimestamp()

	var c *CollaboratorMetrics
	c.Observe("generation", 1, nil)

	var w *WorkflowMetrics
	w.ObserveReconcile("applied")
	w.ObserveCommit(false, nil)
	w.ObserveBooking(nil)
}
