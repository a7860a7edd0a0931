package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CasesOpened         *prometheus.CounterVec
	CasesCompleted      *prometheus.CounterVec
	CasesFailed         *prometheus.CounterVec
	CaseDuration        *prometheus.HistogramVec
	ViolationsDetected  prometheus.Counter
	MilestonesAchieved  prometheus.Counter
	SweepRequeuedCases  prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CasesOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_cases_opened_total",
			Help: "Total number of cases opened",
		}, []string{"type"}),
		CasesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_cases_completed_total",
			Help: "Total number of cases that reached completed",
		}, []string{"type"}),
		CasesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credence_cases_failed_total",
			Help: "Total number of cases that reached failed",
		}, []string{"type"}),
		CaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credence_case_processing_seconds",
			Help:    "Wall time from processing start to a terminal status",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		ViolationsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credence_violations_detected_total",
			Help: "Total number of rule and regulation violations detected",
		}),
		MilestonesAchieved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credence_milestones_achieved_total",
			Help: "Total number of workflow milestones achieved",
		}),
		SweepRequeuedCases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credence_sweep_requeued_cases_total",
			Help: "Total number of stale pending cases picked up by the sweep",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credence_case_cache_hits_total",
			Help: "Total number of case lookups served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credence_case_cache_misses_total",
			Help: "Total number of case lookups that fell through to the store",
		}),
	}
}

func (m *Metrics) ObserveCaseOpened(caseType string) {
	m.CasesOpened.WithLabelValues(caseType).Inc()
}

func (m *Metrics) ObserveCaseFinished(caseType string, failed bool, elapsed time.Duration) {
	if failed {
		m.CasesFailed.WithLabelValues(caseType).Inc()
	} else {
		m.CasesCompleted.WithLabelValues(caseType).Inc()
	}
	m.CaseDuration.WithLabelValues(caseType).Observe(elapsed.Seconds())
}

func (m *Metrics) AddViolations(n int) {
	m.ViolationsDetected.Add(float64(n))
}
