// Package metrics exposes Prometheus metrics the agent updates while trading:
//
//   - agent_actions_total{kind,outcome} – submitted actions by kind and result
//   - agent_cycles_total{phase}         – poll cycles that ran a decision step
//   - agent_offer_holds_total           – offer rounds suspended by the
//     no-response circuit breaker
//   - agent_no_response_streak          – current no-response streak (gauge)
//   - agent_profit                      – last profit reported by the market
//
// Registered in init() and served by the web server at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_actions_total",
			Help: "Actions submitted to the market, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_cycles_total",
			Help: "Decision cycles executed, by round phase",
		},
		[]string{"phase"},
	)

	offerHoldsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_offer_holds_total",
			Help: "Offer rounds suspended by the no-response circuit breaker",
		},
	)

	noResponseStreak = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_no_response_streak",
			Help: "Consecutive offer rounds with zero converted offers",
		},
	)

	profit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_profit",
			Help: "Profit reported by the market at the last refresh",
		},
	)
)

func init() {
	prometheus.MustRegister(actionsTotal, cyclesTotal, offerHoldsTotal, noResponseStreak, profit)
}

// ObserveAction counts one submitted action.
func ObserveAction(kind, outcome string) {
	actionsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveCycle counts one executed decision step.
func ObserveCycle(phase string) {
	cyclesTotal.WithLabelValues(phase).Inc()
}

// ObserveOfferHold counts one suspended offer round.
func ObserveOfferHold() {
	offerHoldsTotal.Inc()
}

// SetNoResponseStreak publishes the current streak value.
func SetNoResponseStreak(n int) {
	noResponseStreak.Set(float64(n))
}

// SetProfit publishes the last known profit.
func SetProfit(v float64) {
	profit.Set(v)
}
