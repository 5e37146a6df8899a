package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ConnectOutcomeSuccess = "success"
	ConnectOutcomeFailure = "failure"
	ConnectOutcomeTimeout = "timeout"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syncws",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "syncws",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	executorTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syncws",
			Subsystem: "executor",
			Name:      "tasks_total",
			Help:      "Tasks executed on a network executor.",
		},
		[]string{"executor"},
	)
	executorQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "syncws",
			Subsystem: "executor",
			Name:      "queue_depth",
			Help:      "Tasks waiting on a network executor.",
		},
		[]string{"executor"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syncws",
			Subsystem: "socket",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by outcome.",
		},
		[]string{"outcome"},
	)
	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syncws",
			Subsystem: "socket",
			Name:      "sends_total",
			Help:      "Send calls by result.",
		},
		[]string{"success"},
	)
	receives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syncws",
			Subsystem: "socket",
			Name:      "receives_total",
			Help:      "ReceiveNextMessage calls by status.",
		},
		[]string{"status"},
	)
	inboundMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "syncws",
			Subsystem: "socket",
			Name:      "inbound_messages_total",
			Help:      "Messages queued by the network executor.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			executorTasks,
			executorQueueDepth,
			connectAttempts,
			sends,
			receives,
			inboundMessages,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordExecutorTask(executor string) {
	RegisterMetrics()
	executorTasks.WithLabelValues(executor).Inc()
}

func SetExecutorQueueDepth(executor string, depth int) {
	RegisterMetrics()
	executorQueueDepth.WithLabelValues(executor).Set(float64(depth))
}

func RecordConnectAttempt(outcome string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(outcome).Inc()
}

func RecordSend(success bool) {
	RegisterMetrics()
	sends.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordReceive(status string) {
	RegisterMetrics()
	receives.WithLabelValues(status).Inc()
}

func RecordInboundMessage() {
	RegisterMetrics()
	inboundMessages.Inc()
}
