package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_http_requests_total",
			Help: "Total number of HTTP requests processed by the room service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "room_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_ws_active_connections",
			Help: "Number of open websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	wsDroppedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_ws_dropped_frames_total",
			Help: "Outbound frames dropped because a connection queue was full or gone.",
		},
	)
	roomInboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_inbound_events_total",
			Help: "Inbound protocol events accepted for processing.",
		},
		[]string{"event"},
	)
	roomRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_rejections_total",
			Help: "Inbound events rejected as protocol violations.",
		},
		[]string{"reason"},
	)
	roomFanoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_fanout_frames_total",
			Help: "Outbound frames handed to connections.",
		},
		[]string{"event"},
	)
	roomOnline = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "room_online_connections",
			Help: "Joined connections per room.",
		},
		[]string{"room"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	archiveDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_archive_dropped_total",
			Help: "History changes dropped because the archive queue was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsDroppedFrames,
		roomInboundTotal,
		roomRejectionsTotal,
		roomFanoutTotal,
		roomOnline,
		amqpPublishErrorsTotal,
		archiveDroppedTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncWSDropped() {
	wsDroppedFrames.Inc()
}

func IncRoomInbound(event string) {
	roomInboundTotal.WithLabelValues(event).Inc()
}

func IncRoomRejection(reason string) {
	roomRejectionsTotal.WithLabelValues(reason).Inc()
}

func AddRoomFanout(event string, n int) {
	roomFanoutTotal.WithLabelValues(event).Add(float64(n))
}

func SetRoomOnline(roomID string, n int) {
	roomOnline.WithLabelValues(roomID).Set(float64(n))
}

func DeleteRoomOnline(roomID string) {
	roomOnline.DeleteLabelValues(roomID)
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncArchiveDropped() {
	archiveDroppedTotal.Inc()
}
