// Package metrics connect 服务的 prometheus 指标，统一在 init 中注册到默认 Registry。
package metrics

import "github.com/prometheus/client_golang/prometheus"

// 投递结果
const (
	OutcomeDelivered = "delivered" // 已放入在线对端邮箱
	OutcomeDropped   = "dropped"   // 对端在线但邮箱已满或正在关闭
	OutcomeNotified  = "notified"  // 对端离线，已走推送
	OutcomeNoToken   = "no_token"  // 对端离线且没有推送 token
	OutcomeOffline   = "offline"   // 对端离线，直接失败
	OutcomeFailed    = "failed"    // 落库或推送失败
)

var (
	// OnlineConnections 当前注册在 Registry 中的连接数
	OnlineConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatrelay",
		Subsystem: "connect",
		Name:      "online_connections",
		Help:      "Number of registered websocket sessions.",
	})

	// RelayTotal 按消息种类与结果统计的转发次数
	RelayTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Subsystem: "relay",
		Name:      "deliveries_total",
		Help:      "Relay attempts partitioned by message kind and outcome.",
	}, []string{"kind", "outcome"})

	// InboundFrames 上行帧计数，kind 为帧类型或 invalid/limited
	InboundFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Subsystem: "connect",
		Name:      "inbound_frames_total",
		Help:      "Inbound websocket frames partitioned by kind.",
	}, []string{"kind"})

	// HTTPRequests HTTP 请求计数
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests partitioned by method, route and status.",
	}, []string{"method", "path", "status"})

	// HTTPDuration HTTP 请求耗时
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatrelay",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(OnlineConnections, RelayTotal, InboundFrames, HTTPRequests, HTTPDuration)
}

// ObserveRelay 记录一次转发
func ObserveRelay(kind, outcome string) {
	RelayTotal.WithLabelValues(kind, outcome).Inc()
}
