package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 汇总助手服务的 Prometheus 指标。
type Metrics struct {
	Turns        *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	LLMCalls     *prometheus.CounterVec
	CacheHits    *prometheus.CounterVec
	ActiveTurns  prometheus.Gauge
	BreakerState *prometheus.GaugeVec
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default 返回注册在全局 Registry 上的实例，只创建一次。
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew 在给定的 Registerer 上注册全部指标，注册失败时 panic。
func MustNew(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "turns_total",
			Help:      "Number of conversation turns by handler and outcome.",
		}, []string{"handler", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Name:      "task_duration_seconds",
			Help:      "Duration of pipeline tasks by executor kind and final state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent", "status"}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "llm_calls_total",
			Help:      "Number of model calls by mode and outcome.",
		}, []string{"mode", "outcome"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "cache_hits_total",
			Help:      "Cache lookups by cache kind and result.",
		}, []string{"kind", "result"}),
		ActiveTurns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assistant",
			Name:      "active_turns",
			Help:      "Number of turns currently streaming.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "assistant",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state by name: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}
	reg.MustRegister(m.Turns, m.TaskDuration, m.LLMCalls, m.CacheHits, m.ActiveTurns, m.BreakerState)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLLMCall 记录一次模型调用。
func (m *Metrics) ObserveLLMCall(mode string, err error) {
	m.LLMCalls.WithLabelValues(mode, outcome(err)).Inc()
}

// ObserveTask 记录一个任务的耗时。
func (m *Metrics) ObserveTask(kind, status string, d time.Duration) {
	m.TaskDuration.WithLabelValues(kind, status).Observe(d.Seconds())
}

// ObserveTurn 记录一个轮次的结果。
func (m *Metrics) ObserveTurn(handler, result string) {
	m.Turns.WithLabelValues(handler, result).Inc()
}

// ObserveCache 记录一次缓存查询。
func (m *Metrics) ObserveCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheHits.WithLabelValues(kind, result).Inc()
}

// ObserveBreakerState 记录熔断器的当前状态。
func (m *Metrics) ObserveBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
