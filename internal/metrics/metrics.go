package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 快照会话指标
	SnapshotSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kavka_snapshot_sessions_total",
			Help: "Total number of snapshot sessions by outcome",
		},
		[]string{"outcome"},
	)

	SnapshotMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kavka_snapshot_messages_total",
			Help: "Total number of messages returned by snapshot sessions",
		},
		[]string{"topic"},
	)

	SnapshotBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kavka_snapshot_bytes_total",
			Help: "Total value bytes returned by snapshot sessions",
		},
		[]string{"topic"},
	)

	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kavka_snapshot_duration_seconds",
			Help:    "Snapshot session duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	SnapshotActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kavka_snapshot_active_sessions",
			Help: "Number of snapshot sessions currently consuming",
		},
	)

	// Kafka消费错误
	KafkaConsumeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kavka_kafka_consume_errors_total",
			Help: "Total number of Kafka fetch errors seen by snapshot consumers",
		},
		[]string{"topic"},
	)

	// Admin请求指标
	AdminRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kavka_admin_requests_total",
			Help: "Total number of admin requests by operation and status",
		},
		[]string{"op", "status"},
	)

	// API请求指标
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kavka_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "result"},
	)
)
