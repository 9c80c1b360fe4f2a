package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "auditor"

	// Labels
	outcomeLabel = "outcome"
	stageLabel   = "stage"
	sourceLabel  = "source"
	channelLabel = "channel"
)

/**
* Metrics definition
**/
var submissionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "audit submissions partitioned by source and admission outcome",
	},
	[]string{sourceLabel, outcomeLabel},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "time spent in each pipeline stage",
		Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
	},
	[]string{stageLabel, outcomeLabel},
)

var jobOutcomesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_outcomes_total",
		Help:      "pipeline job results: complete, retry, dead, skipped",
	},
	[]string{outcomeLabel},
)

var notificationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "notifications sent partitioned by channel and outcome",
	},
	[]string{channelLabel, outcomeLabel},
)

var workersBusyMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_busy",
		Help:      "workers currently running a job",
	},
)

var sweptTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_audits_total",
		Help:      "stuck audits re-enqueued by the recovery sweep",
	},
)

func IncreaseSubmissionsTotal(source, outcome string) {
	submissionsTotalMetric.With(prometheus.Labels{sourceLabel: source, outcomeLabel: outcome}).Inc()
}

func ObserveStage(stage, outcome string, d time.Duration) {
	stageDurationMetric.With(prometheus.Labels{stageLabel: stage, outcomeLabel: outcome}).Observe(d.Seconds())
}

func IncreaseJobOutcome(outcome string) {
	jobOutcomesTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreaseNotifications(channel, outcome string) {
	notificationsTotalMetric.With(prometheus.Labels{channelLabel: channel, outcomeLabel: outcome}).Inc()
}

func WorkerBusy() { workersBusyMetric.Inc() }

func WorkerIdle() { workersBusyMetric.Dec() }

func AddSwept(n int) { sweptTotalMetric.Add(float64(n)) }

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(submissionsTotalMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(jobOutcomesTotalMetric)
	prometheus.MustRegister(notificationsTotalMetric)
	prometheus.MustRegister(workersBusyMetric)
	prometheus.MustRegister(sweptTotalMetric)
}
