package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	channelFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ariactl",
			Subsystem: "channel",
			Name:      "frames_total",
			Help:      "Inbound channel frames by event type.",
		},
		[]string{"type"},
	)
	channelDecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ariactl",
			Subsystem: "channel",
			Name:      "decode_failures_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		},
	)
	channelReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ariactl",
			Subsystem: "channel",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after non-intentional closes.",
		},
	)
	channelConnectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ariactl",
			Subsystem: "channel",
			Name:      "connect_duration_seconds",
			Help:      "Channel dial duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"success"},
	)
	jobPollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ariactl",
			Subsystem: "jobpoll",
			Name:      "fetches_total",
			Help:      "Job status fetches by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			channelFrames,
			channelDecodeFailures,
			channelReconnects,
			channelConnectDuration,
			jobPollFetches,
		)
	})
}

func RecordChannelFrame(eventType string) {
	RegisterMetrics()
	channelFrames.WithLabelValues(eventType).Inc()
}

func RecordChannelDecodeFailure() {
	RegisterMetrics()
	channelDecodeFailures.Inc()
}

func RecordChannelReconnect() {
	RegisterMetrics()
	channelReconnects.Inc()
}

func ObserveChannelConnect(duration time.Duration, success bool) {
	RegisterMetrics()
	channelConnectDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

func RecordJobPollFetch(outcome string) {
	RegisterMetrics()
	jobPollFetches.WithLabelValues(outcome).Inc()
}
