package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/domain/audits"
)

// StatusCounter is implemented by the audit store.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[audits.Status]int, error)
}

type auditStatusCollector struct {
	store  StatusCounter
	log    logrus.FieldLogger
	audits *prometheus.Desc
}

// NewAuditStatusCollector reports the number of audits per status on every scrape.
func NewAuditStatusCollector(store StatusCounter, log logrus.FieldLogger) prometheus.Collector {
	return &auditStatusCollector{
		store: store,
		log:   log.WithField("component", "audit_status_collector"),
		audits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "audits"),
			"Number of audits by status.",
			[]string{"status"},
			nil,
		),
	}
}

func (c *auditStatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.audits
}

// Collect implements Collector.
func (c *auditStatusCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.store.CountByStatus(ctx)
	if err != nil {
		c.log.WithError(err).Error("failed to collect audit statistics")
		return
	}
	for _, s := range []audits.Status{audits.StatusPending, audits.StatusProcessing, audits.StatusComplete, audits.StatusFailed} {
		ch <- prometheus.MustNewConstMetric(c.audits, prometheus.GaugeValue, float64(counts[s]), string(s))
	}
}
