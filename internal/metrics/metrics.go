// Package metrics holds the prometheus collectors for the ledger core.  A
// nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests and tools.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "bunker"

type Metrics struct {
	migrationSteps        *prometheus.CounterVec
	sessionsCreated       prometheus.Counter
	sessionCreateFailures *prometheus.CounterVec
	backfillCreated       prometheus.Counter
	backfillDivergence    prometheus.Counter
}

// New creates the collectors and registers them with reg.  A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		migrationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_steps_total",
			Help:      "Schema migration steps by direction, step and outcome.",
		}, []string{"direction", "step", "outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created together with their rent line item.",
		}),
		sessionCreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_create_failures_total",
			Help:      "Rejected session creations by error kind.",
		}, []string{"kind"}),
		backfillCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_rent_line_items_total",
			Help:      "Rent line items written by the backfill tool.",
		}),
		backfillDivergence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_verification_divergence_total",
			Help:      "Backfill runs whose verification counts did not match.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.migrationSteps, m.sessionsCreated, m.sessionCreateFailures,
			m.backfillCreated, m.backfillDivergence)
	}
	return m
}

func (m *Metrics) MigrationStep(direction, step, outcome string) {
	if m == nil {
		return
	}
	m.migrationSteps.WithLabelValues(direction, step, outcome).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionCreateFailed(kind string) {
	if m == nil {
		return
	}
	m.sessionCreateFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) BackfillCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.backfillCreated.Add(float64(n))
}

func (m *Metrics) BackfillDiverged() {
	if m == nil {
		return
	}
	m.backfillDivergence.Inc()
}
