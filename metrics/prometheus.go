package metrics

import "github.com/prometheus/client_golang/prometheus"

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var HttpErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_errors_total",
		Help: "Total number of failed HTTP requests (4xx/5xx)",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected due to rate limiting",
	},
)

var WebhookEventsReceivedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Total number of webhook events accepted for fan-out",
	},
	[]string{"event_type"},
)

var WebhookFanoutTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_fanout_total",
		Help: "Per-subscription dispatch outcomes during fan-out",
	},
	[]string{"priority", "status"},
)

var WebhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Delivery records transitioned by the consumer, by outcome",
	},
	[]string{"source", "status"},
)

var WebhookDeliveryProcessDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "webhook_delivery_process_duration_seconds",
		Help:    "Time taken to process a dequeued delivery envelope",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"source"},
)

var WebhookRetriesScheduledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_retries_scheduled_total",
		Help: "Total number of deliveries re-enqueued for retry",
	},
	[]string{"reason"},
)

var WebhookRetriesExhaustedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "webhook_retries_exhausted_total",
		Help: "Total number of deliveries forced to terminal failed after max retries",
	},
)

var FastQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "webhook_fast_queue_depth",
		Help: "Current length of the high priority Redis list",
	},
)

var KafkaPublishSuccessTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_publish_success_total",
		Help: "Total number of successful Kafka publishes",
	},
	[]string{"topic"},
)

var KafkaPublishFailureTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_publish_failure_total",
		Help: "Total number of failed Kafka publishes",
	},
	[]string{"topic"},
)

var KafkaSubscriberFailureTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_subscriber_failure_total",
		Help: "Total number of failed Kafka reads",
	},
	[]string{"topic"},
)

var KafkaConsumerLag = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "kafka_consumer_lag",
		Help: "Lag of Kafka consumer group per topic",
	},
	[]string{"group", "topic"},
)

func InitAPIMetrics() {
	prometheus.MustRegister(HttpRequestsTotal)
	prometheus.MustRegister(HttpRequestDuration)
	prometheus.MustRegister(HttpErrorsTotal)
	prometheus.MustRegister(HttpRateLimitRejectionsTotal)
	prometheus.MustRegister(WebhookEventsReceivedTotal)
	prometheus.MustRegister(WebhookFanoutTotal)
}

func InitWorkerMetrics() {
	prometheus.MustRegister(WebhookDeliveriesTotal)
	prometheus.MustRegister(WebhookDeliveryProcessDuration)
	prometheus.MustRegister(WebhookRetriesScheduledTotal)
	prometheus.MustRegister(WebhookRetriesExhaustedTotal)
	prometheus.MustRegister(FastQueueDepth)
}

func InitKafkaMetrics() {
	prometheus.MustRegister(KafkaPublishSuccessTotal)
	prometheus.MustRegister(KafkaPublishFailureTotal)
	prometheus.MustRegister(KafkaSubscriberFailureTotal)
	prometheus.MustRegister(KafkaConsumerLag)
}
