// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 同期パスとHTTPレスポンスの計測に使用する。
type Collector struct {
	syncPassTotal       *prometheus.CounterVec
	syncDuration        prometheus.Histogram
	attendancesUpserted prometheus.Counter
	eventsProcessed     prometheus.Counter
	providerErrors      prometheus.Counter
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncPassTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadbook_sync_pass_total",
			Help: "同期パス実行の合計数（結果別）",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadbook_sync_duration_seconds",
			Help:    "同期パスの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		attendancesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadbook_attendances_upserted_total",
			Help: "UPSERTされた参加実績の合計数",
		}),
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadbook_events_processed_total",
			Help: "処理されたカレンダーイベントの合計数",
		}),
		providerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadbook_provider_errors_total",
			Help: "カレンダープロバイダー呼び出し失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.syncPassTotal,
		c.syncDuration,
		c.attendancesUpserted,
		c.eventsProcessed,
		c.providerErrors,
		c.httpStatus,
	)

	return c
}

// RecordSyncPass は同期パスの実行を結果別に記録する。
func (c *Collector) RecordSyncPass(success bool) {
	result := "ok"
	if !success {
		result = "failed"
	}
	c.syncPassTotal.WithLabelValues(result).Inc()
}

// RecordSyncDuration は同期パスの所要時間を記録する。
func (c *Collector) RecordSyncDuration(d time.Duration) {
	c.syncDuration.Observe(d.Seconds())
}

// RecordAttendancesUpserted はUPSERTされた参加実績数を記録する。
func (c *Collector) RecordAttendancesUpserted(count int) {
	c.attendancesUpserted.Add(float64(count))
}

// RecordEventsProcessed は処理されたイベント数を記録する。
func (c *Collector) RecordEventsProcessed(count int) {
	c.eventsProcessed.Add(float64(count))
}

// RecordProviderError はプロバイダー呼び出しの失敗を記録する。
func (c *Collector) RecordProviderError() {
	c.providerErrors.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
