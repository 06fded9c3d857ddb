package metrics

import "github.com/prometheus/client_golang/prometheus"

// Quota, referral and reset Prometheus metrics.
var (
	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "quota_decisions_total",
			Help:      "Quota decisions by reason",
		},
		[]string{"reason"}, // premium / allowance / limit_reached
	)

	QuotaConsumptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "quota_consumptions_total",
			Help:      "Committed consumptions by result",
		},
		[]string{"result"}, // consumed / premium / exhausted
	)

	QuotaRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "quota_rollovers_total",
			Help:      "Lazy per-user day rollovers applied",
		},
	)

	ReferralOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "referral_outcomes_total",
			Help:      "First-contact referral outcomes",
		},
		[]string{"outcome"},
	)

	PremiumGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "premium_grants_total",
			Help:      "Premium grants by status",
		},
		[]string{"status"}, // granted / conflict / error
	)

	ResetRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "reset_runs_total",
			Help:      "Bulk allowance resets by trigger and status",
		},
		[]string{"trigger", "status"}, // scheduler|admin, success|error
	)

	ResetUsersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutorbot",
			Name:      "reset_users_total",
			Help:      "Users whose allowance was reset in bulk",
		},
	)

	ResetLastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutorbot",
			Name:      "reset_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful bulk reset",
		},
	)
)

var quotaMetricsRegistered bool

// RegisterQuotaMetrics registers quota metrics. Must be called once from main.
func RegisterQuotaMetrics() {
	if quotaMetricsRegistered {
		return
	}
	prometheus.MustRegister(QuotaDecisionsTotal)
	prometheus.MustRegister(QuotaConsumptionsTotal)
	prometheus.MustRegister(QuotaRolloversTotal)
	prometheus.MustRegister(ReferralOutcomesTotal)
	prometheus.MustRegister(PremiumGrantsTotal)
	prometheus.MustRegister(ResetRunsTotal)
	prometheus.MustRegister(ResetUsersTotal)
	prometheus.MustRegister(ResetLastSuccessTimestamp)
	quotaMetricsRegistered = true
}
