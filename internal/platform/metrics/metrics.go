package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Increment methods
// tolerate a nil receiver so handlers and services can be constructed bare in
// tests without registering collectors.
type Metrics struct {
	CertificatesIssued  prometheus.Counter
	SubmissionFailures  prometheus.Counter
	Verifications       *prometheus.CounterVec
	ArtifactsRendered   prometheus.Counter
	ConfirmationSeconds prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_certificates_issued_total",
			Help: "Total number of certificates confirmed on the ledger",
		}),
		SubmissionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_submission_failures_total",
			Help: "Total number of failed ledger submissions",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verifications_total",
			Help: "Total number of verification lookups by result",
		}, []string{"result"}),
		ArtifactsRendered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_artifacts_rendered_total",
			Help: "Total number of certificate documents rendered to disk",
		}),
		ConfirmationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_confirmation_seconds",
			Help:    "Time spent waiting for ledger confirmation",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

func (m *Metrics) IncIssued() {
	if m == nil || m.CertificatesIssued == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncSubmissionFailure() {
	if m == nil || m.SubmissionFailures == nil {
		return
	}
	m.SubmissionFailures.Inc()
}

// IncVerification records a lookup outcome; result is "found" or "not_found".
func (m *Metrics) IncVerification(result string) {
	if m == nil || m.Verifications == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncArtifactRendered() {
	if m == nil || m.ArtifactsRendered == nil {
		return
	}
	m.ArtifactsRendered.Inc()
}

func (m *Metrics) ObserveConfirmation(d time.Duration) {
	if m == nil || m.ConfirmationSeconds == nil {
		return
	}
	m.ConfirmationSeconds.Observe(d.Seconds())
}
