// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotesSubmitted counts accepted quote requests.
	QuotesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procurehub_quotes_submitted_total",
		Help: "Quote requests accepted for matching.",
	})

	// MatchesReturned tracks how many vendor matches each run produced.
	MatchesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "procurehub_matches_returned",
		Help:    "Vendor matches returned per matching run.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
	})

	// AIRequests counts model calls by outcome: ok, error, parse_fallback.
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurehub_ai_requests_total",
		Help: "AI suggestion calls by outcome.",
	}, []string{"outcome"})

	// AnalyticsEvents counts ingested visibility events by type.
	AnalyticsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurehub_analytics_events_total",
		Help: "Visibility events ingested, by event type.",
	}, []string{"type"})

	// EventsPublished counts messages handed to the broker by queue name.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurehub_events_published_total",
		Help: "Messages published to the broker, by queue.",
	}, []string{"queue"})

	// MailSent counts outbound mail by kind: reset, quote_lead.
	MailSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procurehub_mail_sent_total",
		Help: "Outbound mail deliveries, by kind.",
	}, []string{"kind"})
)
