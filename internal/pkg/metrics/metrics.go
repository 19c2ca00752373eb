package metrics

import "github.com/prometheus/client_golang/prometheus"

// Store bundles the RED metrics shared by the application services plus
// the saga bookkeeping counters. A nil *Store disables recording, which
// keeps tests free of registry setup.
type Store struct {
	UsecaseRequests        *prometheus.CounterVec
	UsecaseDuration        *prometheus.HistogramVec
	StockCompensations     *prometheus.CounterVec
	ReconciliationRequired prometheus.Counter
}

func New(reg prometheus.Registerer) *Store {
	s := &Store{
		UsecaseRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usecase_requests_total",
				Help: "Total number of use case invocations.",
			},
			[]string{"use_case", "outcome"},
		),
		UsecaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usecase_duration_seconds",
				Help:    "Duration of use case execution in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"use_case"},
		),
		StockCompensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_compensations_total",
				Help: "Count of compensating stock increments, by trigger.",
			},
			[]string{"trigger"},
		),
		ReconciliationRequired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stock_reconciliation_required_total",
				Help: "Count of stock adjustments that could not be confirmed and need manual reconciliation.",
			},
		),
	}
	reg.MustRegister(s.UsecaseRequests, s.UsecaseDuration, s.StockCompensations, s.ReconciliationRequired)
	return s
}

func (s *Store) IncRequest(useCase, outcome string) {
	if s == nil {
		return
	}
	s.UsecaseRequests.WithLabelValues(useCase, outcome).Inc()
}

func (s *Store) ObserveDuration(useCase string, seconds float64) {
	if s == nil {
		return
	}
	s.UsecaseDuration.WithLabelValues(useCase).Observe(seconds)
}

func (s *Store) IncCompensation(trigger string) {
	if s == nil {
		return
	}
	s.StockCompensations.WithLabelValues(trigger).Inc()
}

func (s *Store) IncReconciliation() {
	if s == nil {
		return
	}
	s.ReconciliationRequired.Inc()
}
