package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_executed_total",
		Help: "Total number of trade requests by side and outcome",
	}, []string{"side", "status"})

	TradeExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trade_execution_duration_seconds",
		Help:    "Duration of buy and sell executions",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	SharesTraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shares_traded_total",
		Help: "Total number of shares moved by committed trades",
	}, []string{"side"})

	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	HistoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_requests_total",
		Help: "Total number of synthesized history series",
	}, []string{"timeframe"})
)

func RecordCacheHit() {
	QuoteCacheHits.Inc()
}

func RecordCacheMiss() {
	QuoteCacheMisses.Inc()
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordTrade(side, status string, quantity int64) {
	TradesExecuted.WithLabelValues(side, status).Inc()
	if status == "success" {
		SharesTraded.WithLabelValues(side).Add(float64(quantity))
	}
}

func RecordHistoryRequest(timeframe string) {
	HistoryRequests.WithLabelValues(timeframe).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
