package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "replybot"

var (
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Webhook deliveries by verification result.",
	}, []string{"result"})

	CommentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comment_outcomes_total",
		Help:      "Processed comments by outcome.",
	}, []string{"outcome"})

	PublishOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_outcomes_total",
		Help:      "Publish attempts by resulting status.",
	}, []string{"status"})
)
