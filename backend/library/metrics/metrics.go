package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filebox",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filebox",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)

	FileListCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filebox",
			Name:      "file_list_cache_total",
			Help:      "File list cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	UploadedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filebox",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to storage by uploads.",
		},
	)

	FolderArchives = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filebox",
			Name:      "folder_archives_total",
			Help:      "Folder zip archives streamed to clients.",
		},
	)
)

func init() {
	for _, c := range []prometheus.Collector{HTTPRequests, HTTPDuration, FileListCache, UploadedBytes, FolderArchives} {
		if err := prometheus.Register(c); err != nil {
			// 重复注册不算错误（测试中可能多次加载）
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

// Handler serves the default registry in the exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
