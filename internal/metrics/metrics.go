// Package metrics exposes the daemon's in-process counters as a Prometheus
// /metrics endpoint: probe outcomes, notifications sent, and system job
// runs, the signals an operator would otherwise have to scrape out of the
// rotating log file.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	probesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webmond_probe_checks_total",
		Help: "Monitor probe checks completed, labeled by resulting status.",
	}, []string{"status"})

	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webmond_notifications_total",
		Help: "Notification emails attempted, labeled by outcome.",
	}, []string{"kind", "outcome"})

	systemJobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webmond_system_job_runs_total",
		Help: "System job (health_alert, data_cleanup) runs, labeled by job name and outcome.",
	}, []string{"job", "outcome"})

	retentionDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webmond_retention_results_deleted_total",
		Help: "Result rows removed by the retention job across all runs.",
	})
)

func init() {
	prometheus.MustRegister(probesTotal, notificationsTotal, systemJobRunsTotal, retentionDeletedTotal)
}

// RecordProbe increments the counter for a completed monitor check.
func RecordProbe(status string) {
	probesTotal.WithLabelValues(status).Inc()
}

// RecordNotification increments the counter for an attempted notification,
// kind being "transition" or "health_alert".
func RecordNotification(kind string, sent bool) {
	outcome := "failed"
	if sent {
		outcome = "sent"
	}
	notificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSystemJob increments the counter for a manually or automatically run
// system job.
func RecordSystemJob(name string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	systemJobRunsTotal.WithLabelValues(name, outcome).Inc()
}

// RecordRetentionDeleted adds n to the total count of rows the retention job
// has removed.
func RecordRetentionDeleted(n int) {
	if n > 0 {
		retentionDeletedTotal.Add(float64(n))
	}
}

// Handler returns the http.Handler serving the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
