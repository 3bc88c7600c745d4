// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	ObserveLogin(result string)
	RecordAuditWriteFailure(action string)
	RecordQuarterlySave(result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts      *prometheus.CounterVec
	auditWriteFailures *prometheus.CounterVec
	quarterlySaves     *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irportal_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		auditWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irportal_audit_write_failures_total",
			Help: "書き込みに失敗した監査ログの数",
		}, []string{"action"}),
		quarterlySaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irportal_quarterly_saves_total",
			Help: "結果別の四半期データ保存数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irportal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "irportal_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.auditWriteFailures,
		c.quarterlySaves,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// ObserveLogin はログイン試行の結果を記録する。
func (c *Collector) ObserveLogin(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordAuditWriteFailure は監査ログの書き込み失敗を記録する。
func (c *Collector) RecordAuditWriteFailure(action string) {
	c.auditWriteFailures.WithLabelValues(action).Inc()
}

// RecordQuarterlySave は四半期データ保存の結果を記録する。
func (c *Collector) RecordQuarterlySave(result string) {
	c.quarterlySaves.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
