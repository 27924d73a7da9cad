// Package metrics keeps the bot's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "filestore_bot"

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultGone   = "gone"
)

type Metrics struct {
	filesIngested *prometheus.CounterVec
	linksIssued   *prometheus.CounterVec
	linkClicks    prometheus.Counter
	deliveries    *prometheus.CounterVec
	cleanups      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		filesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Objects accepted into a group, by result.",
		}, []string{"result"}),
		linksIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_issued_total",
			Help:      "Share codes minted, by target kind.",
		}, []string{"kind"}),
		linkClicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_clicks_total",
			Help:      "Share link resolutions that led to a delivery.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Objects sent to requesters, by result.",
		}, []string{"result"}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deletes_total",
			Help:      "Deferred message deletions, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.filesIngested, m.linksIssued, m.linkClicks, m.deliveries, m.cleanups)
	return m
}

func (m *Metrics) FileIngested(result string) {
	if m == nil {
		return
	}
	m.filesIngested.WithLabelValues(result).Inc()
}

func (m *Metrics) LinkIssued(kind string) {
	if m == nil {
		return
	}
	m.linksIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) LinkClicked() {
	if m == nil {
		return
	}
	m.linkClicks.Inc()
}

func (m *Metrics) Delivered(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) CleanedUp(result string) {
	if m == nil {
		return
	}
	m.cleanups.WithLabelValues(result).Inc()
}
