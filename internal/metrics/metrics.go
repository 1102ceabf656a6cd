/*

This file contains the Prometheus collectors of a strategy instance.

Base-asset amounts are exported as floats in whole tokens, converted with the base asset's
decimals. A nil *StrategyMetrics is valid and records nothing.

*/

package metrics

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/yieldcore/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
)

const NAMESPACE = "yieldcore"

// Label values
const (
	RESULT_SUCCESS = "success"
	RESULT_FAILURE = "failure"

	PAYBACK_DIRECT  = "direct"
	PAYBACK_FULL    = "full"
	PAYBACK_PARTIAL = "partial"
)

type StrategyMetrics struct {
	decimals int

	cycles                *prometheus.CounterVec
	cycleDuration         prometheus.Histogram
	earned                prometheus.Counter
	lost                  prometheus.Counter
	performance           prometheus.Counter
	insurance             prometheus.Counter
	reinvested            prometheus.Counter
	investedAssets        prometheus.Gauge
	forwarded             *prometheus.CounterVec
	priceImpactRejections *prometheus.CounterVec
	paybacks              *prometheus.CounterVec
	rejectedCalls         *prometheus.CounterVec
}

// NewStrategyMetrics registers every collector on reg. Registering twice on the same
// registry fails with prometheus.AlreadyRegisteredError.
func NewStrategyMetrics(reg prometheus.Registerer, baseDecimals int) (*StrategyMetrics, error) {
	m := &StrategyMetrics{
		decimals: baseDecimals,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "cycles_total",
			Help:      "Work cycles executed, by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of successful work cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		earned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "earned_base_total",
			Help:      "Earnings reported to the splitter, in base tokens.",
		}),
		lost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "lost_base_total",
			Help:      "Losses reported to the splitter, in base tokens.",
		}),
		performance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "performance_fee_base_total",
			Help:      "Performance fee paid to the receiver, in base tokens.",
		}),
		insurance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "insurance_base_total",
			Help:      "Performance fee share sent to the insurance reserve, in base tokens.",
		}),
		reinvested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "reinvested_base_total",
			Help:      "Idle base asset reinvested into the pool.",
		}),
		investedAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "invested_assets_base",
			Help:      "Last valuation snapshot, in base tokens.",
		}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "forwarded_amount_total",
			Help:      "Reward amounts sent to the forwarder, in smallest units per token.",
		}, []string{"token"}),
		priceImpactRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "price_impact_rejections_total",
			Help:      "Swaps rejected because they deviated from the oracle price.",
		}, []string{"operation"}),
		paybacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "paybacks_total",
			Help:      "Payback requests from the lending aggregator, by outcome.",
		}, []string{"outcome"}),
		rejectedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "rejected_calls_total",
			Help:      "Entry point calls rejected before any side effect, by reason.",
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{
		m.cycles, m.cycleDuration, m.earned, m.lost, m.performance, m.insurance,
		m.reinvested, m.investedAssets, m.forwarded, m.priceImpactRejections,
		m.paybacks, m.rejectedCalls,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *StrategyMetrics) toFloat(v sdkmath.Int) float64 {
	if v.IsNil() || !v.IsPositive() {
		return 0
	}
	f, err := utils.SDKIntToFloat64(v, m.decimals)
	if err != nil {
		return 0
	}
	return f
}

// CycleCompleted records a successful cycle.
func (m *StrategyMetrics) CycleCompleted(d time.Duration, earned, lost, performance, insurance, reinvested sdkmath.Int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(RESULT_SUCCESS).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.earned.Add(m.toFloat(earned))
	m.lost.Add(m.toFloat(lost))
	m.performance.Add(m.toFloat(performance))
	m.insurance.Add(m.toFloat(insurance))
	m.reinvested.Add(m.toFloat(reinvested))
}

func (m *StrategyMetrics) CycleFailed() {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(RESULT_FAILURE).Inc()
}

func (m *StrategyMetrics) SetInvestedAssets(v sdkmath.Int) {
	if m == nil {
		return
	}
	m.investedAssets.Set(m.toFloat(v))
}

// Forwarded records raw smallest-unit amounts: reward tokens have unrelated decimals.
func (m *StrategyMetrics) Forwarded(token string, amount sdkmath.Int) {
	if m == nil || amount.IsNil() || !amount.IsPositive() {
		return
	}
	f, err := utils.SDKIntToFloat64(amount, 0)
	if err != nil {
		return
	}
	m.forwarded.WithLabelValues(token).Add(f)
}

func (m *StrategyMetrics) PriceImpactRejected(operation string) {
	if m == nil {
		return
	}
	m.priceImpactRejections.WithLabelValues(operation).Inc()
}

func (m *StrategyMetrics) Payback(outcome string) {
	if m == nil {
		return
	}
	m.paybacks.WithLabelValues(outcome).Inc()
}

func (m *StrategyMetrics) CallRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedCalls.WithLabelValues(reason).Inc()
}
