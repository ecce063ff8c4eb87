package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage pipeline.
type Metrics struct {
	IncidentsTotal   *prometheus.CounterVec
	IncidentDuration *prometheus.HistogramVec
	VerdictsTotal    *prometheus.CounterVec
	AnalystCalls     *prometheus.CounterVec
	AnalystDuration  prometheus.Histogram
	EffectsTotal     *prometheus.CounterVec
	MemoryErrors     *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbridge_incidents_total",
			Help: "Total incidents processed by final status.",
		}, []string{"status"}),
		IncidentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soarbridge_incident_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~100s
		}, []string{"status"}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbridge_verdicts_total",
			Help: "Classified incidents by verdict.",
		}, []string{"verdict"}),
		AnalystCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbridge_analyst_calls_total",
			Help: "Analyst calls by result.",
		}, []string{"result"}),
		AnalystDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soarbridge_analyst_call_duration_seconds",
			Help:    "Duration of analyst calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s .. 64s
		}),
		EffectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbridge_effects_total",
			Help: "Best-effort side effects by name and outcome.",
		}, []string{"effect", "outcome"}),
		MemoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbridge_memory_errors_total",
			Help: "Incident memory store errors by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.IncidentsTotal,
		m.IncidentDuration,
		m.VerdictsTotal,
		m.AnalystCalls,
		m.AnalystDuration,
		m.EffectsTotal,
		m.MemoryErrors,
	)

	return m
}

// Hooks returns pipeline Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnOutcome: func(o *Outcome, duration float64) {
			m.IncidentsTotal.WithLabelValues(string(o.Status)).Inc()
			m.IncidentDuration.WithLabelValues(string(o.Status)).Observe(duration)
			if o.Status == StatusComplete {
				m.VerdictsTotal.WithLabelValues(string(o.Verdict)).Inc()
			}
		},
		OnAnalystCall: func(duration float64, err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			m.AnalystCalls.WithLabelValues(result).Inc()
			m.AnalystDuration.Observe(duration)
		},
		OnEffect: func(e Effect) {
			m.EffectsTotal.WithLabelValues(e.Name, e.outcome()).Inc()
		},
		OnMemoryError: func(op string) {
			m.MemoryErrors.WithLabelValues(op).Inc()
		},
	}
}
