// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome はアカウント操作の結果ラベル。
const (
	OutcomeSuccess        = "success"
	OutcomeRejected       = "rejected"
	OutcomeRolledBack     = "rolled_back"
	OutcomePartialFailure = "partial_failure"
	OutcomeError          = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordRequest(method, route string, statusCode int, duration time.Duration)
	RecordAccountEvent(event, outcome string)
	RecordJobsImported(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	accountEvents *prometheus.CounterVec
	jobsImported  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hireflow_http_requests_total",
			Help: "HTTPリクエストの合計数",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hireflow_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		accountEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hireflow_account_events_total",
			Help: "アカウント作成・削除・ロール変更の結果別件数",
		}, []string{"event", "outcome"}),
		jobsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hireflow_jobs_imported_total",
			Help: "フィードから取り込んだ求人の合計数",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.accountEvents,
		c.jobsImported,
	)

	return c
}

// RecordRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡し、IDごとにラベルが増えないようにする。
func (c *Collector) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAccountEvent はアカウント操作の結果を記録する。
func (c *Collector) RecordAccountEvent(event, outcome string) {
	c.accountEvents.WithLabelValues(event, outcome).Inc()
}

// RecordJobsImported は取り込んだ求人数を記録する。
func (c *Collector) RecordJobsImported(count int) {
	c.jobsImported.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordAccountEvent(string, string)                {}
func (Nop) RecordJobsImported(int)                           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
