package chainsync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "chainsync"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of header submissions, labelled by outcome status.
	HeadersSubmitted metrics.Counter
	// Number of justification submissions, labelled by outcome status.
	JustificationsSubmitted metrics.Counter
	// Height of the best (heaviest) chain tip.
	BestHeight metrics.Gauge
	// Height of the finalized root.
	FinalizedHeight metrics.Gauge
	// Number of retained non-finalized headers.
	TreeSize metrics.Gauge
	// Number of warp-sync fragments verified.
	WarpFragments metrics.Counter
}

// PrometheusMetrics returns Metrics built using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		HeadersSubmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "headers_submitted",
			Help:      "Number of header submissions, labelled by outcome status.",
		}, append(labels, "status")).With(labelsAndValues...),
		JustificationsSubmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "justifications_submitted",
			Help:      "Number of justification submissions, labelled by outcome status.",
		}, append(labels, "status")).With(labelsAndValues...),
		BestHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "best_height",
			Help:      "Height of the best chain tip.",
		}, labels).With(labelsAndValues...),
		FinalizedHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "finalized_height",
			Help:      "Height of the finalized root.",
		}, labels).With(labelsAndValues...),
		TreeSize: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tree_size",
			Help:      "Number of retained non-finalized headers.",
		}, labels).With(labelsAndValues...),
		WarpFragments: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "warp_fragments",
			Help:      "Number of warp-sync fragments verified.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		HeadersSubmitted:        discard.NewCounter(),
		JustificationsSubmitted: discard.NewCounter(),
		BestHeight:              discard.NewGauge(),
		FinalizedHeight:         discard.NewGauge(),
		TreeSize:                discard.NewGauge(),
		WarpFragments:           discard.NewCounter(),
	}
}
