package server

import (
	"time"

	"blogmusic/core/resolver"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus 指标
type Metrics struct {
	RequestDuration  *prometheus.HistogramVec
	ResolutionsTotal *prometheus.CounterVec
	AttemptsTotal    *prometheus.CounterVec
	PlaybackFailures *prometheus.CounterVec
	SubmissionsTotal *prometheus.CounterVec
	DownloadsTotal   prometheus.Counter

	reg prometheus.Registerer
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blogmusic_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogmusic_source_resolutions_total",
				Help: "Total number of source links resolved",
			},
			[]string{"platform"},
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogmusic_playback_attempts_total",
				Help: "Playback URL attempts by outcome",
			},
			[]string{"platform", "result"},
		),
		PlaybackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogmusic_playback_failures_total",
				Help: "Requests that exhausted every candidate URL",
			},
			[]string{"platform"},
		),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogmusic_submissions_total",
				Help: "Music submissions by outcome",
			},
			[]string{"result"},
		),
		DownloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blogmusic_downloads_total",
				Help: "Total number of download redirects served",
			},
		),
		reg: reg,
	}

	reg.MustRegister(
		m.RequestDuration,
		m.ResolutionsTotal,
		m.AttemptsTotal,
		m.PlaybackFailures,
		m.SubmissionsTotal,
		m.DownloadsTotal,
	)
	return m
}

// WatchSessions exports the live player session count. The value is read at scrape time,
// so sessions dropped by the registry's TTL are reflected without extra bookkeeping.
func (m *Metrics) WatchSessions(count func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "blogmusic_player_sessions",
			Help: "Number of live player sessions",
		},
		func() float64 { return float64(count()) },
	))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(route, method, statusLabel(status)).Observe(elapsed.Seconds())
}

// AttemptFinished implements playback.Observer.
func (m *Metrics) AttemptFinished(platform resolver.Platform, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.AttemptsTotal.WithLabelValues(platform.String(), result).Inc()
}

// PlaybackFailed implements playback.Observer.
func (m *Metrics) PlaybackFailed(platform resolver.Platform) {
	m.PlaybackFailures.WithLabelValues(platform.String()).Inc()
}

func (m *Metrics) RecordResolution(platform resolver.Platform) {
	m.ResolutionsTotal.WithLabelValues(platform.String()).Inc()
}

func (m *Metrics) RecordSubmission(result string) {
	m.SubmissionsTotal.WithLabelValues(result).Inc()
}
