package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "medisync"

// StoreMetrics tracks record store refetches and mutations.
type StoreMetrics struct {
	refreshTotal  *prometheus.CounterVec
	mutationTotal *prometheus.CounterVec
	malformed     prometheus.Counter
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "refresh_total",
			Help:      "Full collection refetches",
		}, []string{"collection", "status"}),
		mutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "mutation_total",
			Help:      "Record store writes",
		}, []string{"operation", "status"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "malformed_timestamp_total",
			Help:      "Prescription entries whose header line could not be parsed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.refreshTotal, m.mutationTotal, m.malformed)
	return m
}

func (m *StoreMetrics) ObserveRefresh(collection string, err error) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(collection, status(err)).Inc()
}

func (m *StoreMetrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.mutationTotal.WithLabelValues(operation, status(err)).Inc()
}

func (m *StoreMetrics) ObserveMalformedTimestamp() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// CollaboratorMetrics tracks calls to the extraction, generation and summary
// collaborators.
type CollaboratorMetrics struct {
	callsTotal *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func NewCollaboratorMetrics(reg prometheus.Registerer) *CollaboratorMetrics {
	m := &CollaboratorMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "calls_total",
			Help:      "Collaborator calls by outcome",
		}, []string{"collaborator", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "latency_seconds",
			Help:      "Collaborator call latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
		}, []string{"collaborator"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.latency)
	return m
}

func (m *CollaboratorMetrics) Observe(collaborator string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(collaborator, status(err)).Inc()
	m.latency.WithLabelValues(collaborator).Observe(seconds)
}

// WorkflowMetrics tracks front-desk and doctor workflow outcomes.
type WorkflowMetrics struct {
	reconcileTotal *prometheus.CounterVec
	commitTotal    *prometheus.CounterVec
	bookingTotal   *prometheus.CounterVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "reconcile_outcome_total",
			Help:      "Transcript reconciliation outcomes",
		}, []string{"outcome"}),
		commitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggest",
			Name:      "commit_total",
			Help:      "Prescription commits",
		}, []string{"status", "promoted"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "booking_total",
			Help:      "Appointment bookings",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reconcileTotal, m.commitTotal, m.bookingTotal)
	return m
}

func (m *WorkflowMetrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

func (m *WorkflowMetrics) ObserveCommit(promoted bool, err error) {
	if m == nil {
		return
	}
	label := "false"
	if promoted {
		label = "true"
	}
	m.commitTotal.WithLabelValues(status(err), label).Inc()
}

func (m *WorkflowMetrics) ObserveBooking(err error) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
