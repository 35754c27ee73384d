package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	LockAcquire = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "lock_acquire_total", Help: "Lock acquisition attempts by result (acquired, contended)."},
		[]string{"result"},
	)
	LockRelease = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "lock_release_total", Help: "Lock release attempts by result (released, rejected)."},
		[]string{"result"},
	)
	Edits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "edits_total", Help: "Edit requests by outcome."},
		[]string{"result"},
	)
	Reconstructions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "reconstructions_total", Help: "Version reconstructions by source (cache, replay)."},
		[]string{"source"},
	)
	ReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "collab", Name: "replay_duration_seconds", Help: "Time spent replaying change logs.", Buckets: prometheus.DefBuckets},
	)
	Exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collab", Name: "exports_total", Help: "Version exports to object storage by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(LockAcquire)
	reg.MustRegister(LockRelease)
	reg.MustRegister(Edits)
	reg.MustRegister(Reconstructions)
	reg.MustRegister(ReplayDuration)
	reg.MustRegister(Exports)
}
