package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	ProjectsCreated      *prometheus.CounterVec
	CreditsIssued        *prometheus.CounterVec
	StatusTransitions    *prometheus.CounterVec
	StaleStatusConflicts prometheus.Counter
	ConstantsVersions    *prometheus.CounterVec
	AllocationDuration   *prometheus.HistogramVec
	AllocationFailures   *prometheus.CounterVec
	EventPublishFailures prometheus.Counter
	CalculatorDuration   prometheus.Histogram
	CalculatorFailures   prometheus.Counter
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New creates the registry metrics and registers them with reg.
// Tests pass prometheus.NewRegistry() to stay isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProjectsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_projects_created_total",
			Help: "Projects registered, by sub-domain",
		}, []string{"sub_domain"}),
		CreditsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_credits_issued_total",
			Help: "Credit units (ITMO) allocated to new projects, by sub-domain",
		}, []string{"sub_domain"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_status_transitions_total",
			Help: "Successful project status transitions",
		}, []string{"from", "to"}),
		StaleStatusConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_stale_status_conflicts_total",
			Help: "Status updates rejected because the expected status no longer matched",
		}),
		ConstantsVersions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_constants_versions_total",
			Help: "Constants versions written, by domain",
		}, []string{"domain"}),
		AllocationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_counter_allocation_duration_seconds",
			Help:    "Latency of counter allocations",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"counter"}),
		AllocationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_counter_allocation_failures_total",
			Help: "Failed counter allocations",
		}, []string{"counter"}),
		EventPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_transition_event_publish_failures_total",
			Help: "Transition events that could not be published after commit",
		}),
		CalculatorDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_calculator_duration_seconds",
			Help:    "Latency of credit calculator calls",
			Buckets: prometheus.DefBuckets,
		}),
		CalculatorFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_calculator_failures_total",
			Help: "Failed credit calculator calls",
		}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int, d time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncProjectCreated(subDomain string, credits int64) {
	m.ProjectsCreated.WithLabelValues(subDomain).Inc()
	m.CreditsIssued.WithLabelValues(subDomain).Add(float64(credits))
}

func (m *Metrics) IncStatusTransition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncStaleStatus() {
	m.StaleStatusConflicts.Inc()
}

func (m *Metrics) IncConstantsVersion(domain string) {
	m.ConstantsVersions.WithLabelValues(domain).Inc()
}

func (m *Metrics) ObserveAllocation(counter string, d time.Duration, err error) {
	m.AllocationDuration.WithLabelValues(counter).Observe(d.Seconds())
	if err != nil {
		m.AllocationFailures.WithLabelValues(counter).Inc()
	}
}

func (m *Metrics) ObserveCalculation(d time.Duration, err error) {
	m.CalculatorDuration.Observe(d.Seconds())
	if err != nil {
		m.CalculatorFailures.Inc()
	}
}

func (m *Metrics) IncEventPublishFailure() {
	m.EventPublishFailures.Inc()
}
