package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registerOnce           sync.Once
	promptShareRequests    *prometheus.CounterVec
	promptDeleteRequests   *prometheus.CounterVec
	ratingRequests         *prometheus.CounterVec
	commentRequests        *prometheus.CounterVec
	listDuration           *prometheus.HistogramVec
	reconcileRuns          *prometheus.CounterVec
	defaultDurationBuckets = prometheus.DefBuckets
)

const (
	namespaceMetrics   = "promptstudio"
	subsystemCommunity = "community"
)

// MustRegister 初始化 Prometheus 指标并注册 Go 运行时采样器，需在应用启动阶段调用一次。
func MustRegister() {
	registerOnce.Do(func() {
		promptShareRequests = registerCounterVec(newCommunityCounter(
			"share_requests_total", "分享 Prompt 的调用次数，按结果分类。"))
		promptDeleteRequests = registerCounterVec(newCommunityCounter(
			"delete_requests_total", "下架 Prompt 的调用次数，按结果分类。"))
		ratingRequests = registerCounterVec(newCommunityCounter(
			"rating_requests_total", "评分接口的调用次数，按结果分类。"))
		commentRequests = registerCounterVec(newCommunityCounter(
			"comment_requests_total", "评论接口的调用次数，按结果分类。"))
		reconcileRuns = registerCounterVec(newCommunityCounter(
			"reconcile_runs_total", "聚合字段校准任务的执行次数，按结果分类。"))
		listDuration = registerHistogramVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespaceMetrics,
					Subsystem: subsystemCommunity,
					Name:      "list_duration_seconds",
					Help:      "列表查询耗时，按排序方式区分。",
					Buckets:   defaultDurationBuckets,
				},
				[]string{"sort"},
			),
		)

		registerRuntimeCollectors()
	})
}

func newCommunityCounter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceMetrics,
			Subsystem: subsystemCommunity,
			Name:      name,
			Help:      help,
		},
		[]string{"result"},
	)
}

// RecordShare 记录分享 Prompt 的结果分布。
func RecordShare(result string) {
	incResult(promptShareRequests, result)
}

// RecordDelete 记录下架 Prompt 的结果分布。
func RecordDelete(result string) {
	incResult(promptDeleteRequests, result)
}

// RecordRating 记录评分写入的结果分布。
func RecordRating(result string) {
	incResult(ratingRequests, result)
}

// RecordComment 记录评论写入的结果分布。
func RecordComment(result string) {
	incResult(commentRequests, result)
}

// RecordReconcile 记录校准任务的执行结果。
func RecordReconcile(result string) {
	incResult(reconcileRuns, result)
}

// ObserveList 记录列表查询耗时。
func ObserveList(sort string, duration time.Duration) {
	if listDuration == nil {
		return
	}
	listDuration.WithLabelValues(normalizeLabel(sort, "trending")).Observe(duration.Seconds())
}

func incResult(vec *prometheus.CounterVec, result string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(normalizeLabel(result, "unknown")).Inc()
}

func normalizeLabel(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		if existing := alreadyRegisteredCounterVec(err); existing != nil {
			return existing
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(vec); err != nil {
		if existing := alreadyRegisteredHistogramVec(err); existing != nil {
			return existing
		}
		panic(err)
	}
	return vec
}

func registerRuntimeCollectors() {
	if err := prometheus.Register(collectors.NewGoCollector()); err != nil {
		if !isAlreadyRegistered(err) {
			panic(err)
		}
	}
	if err := prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		if !isAlreadyRegistered(err) {
			panic(err)
		}
	}
}

func alreadyRegisteredCounterVec(err error) *prometheus.CounterVec {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing
		}
	}
	return nil
}

func alreadyRegisteredHistogramVec(err error) *prometheus.HistogramVec {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
			return existing
		}
	}
	return nil
}

func isAlreadyRegistered(err error) bool {
	_, ok := err.(prometheus.AlreadyRegisteredError)
	return ok
}
