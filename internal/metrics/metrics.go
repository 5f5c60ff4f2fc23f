package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	MessagesSent      prometheus.Counter
	ChatFailures      prometheus.Counter
	TitlesGenerated   prometheus.Counter
	SearchRequests    prometheus.Counter
	FilesUploaded     prometheus.Counter
	ImagesGenerated   prometheus.Counter
	AudioTranscribed  prometheus.Counter
	CodeOperations    prometheus.Counter
	ProviderLatency   prometheus.Histogram
	RateLimitRejected prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "messages_sent_total",
				Help:      "Total chat messages processed successfully",
			}),
			ChatFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "chat_failures_total",
				Help:      "Total chat completions that failed",
			}),
			TitlesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "titles_generated_total",
				Help:      "Total conversation titles derived from first exchanges",
			}),
			SearchRequests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "search_requests_total",
				Help:      "Total combined web searches",
			}),
			FilesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "files_uploaded_total",
				Help:      "Total files stored in the content store",
			}),
			ImagesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "images_generated_total",
				Help:      "Total images generated",
			}),
			AudioTranscribed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "audio_transcribed_total",
				Help:      "Total audio transcriptions",
			}),
			CodeOperations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "code_operations_total",
				Help:      "Total code generate/analyze/explain operations",
			}),
			ProviderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "chatforge",
				Name:      "provider_latency_seconds",
				Help:      "Latency of language model calls",
				Buckets:   prometheus.DefBuckets,
			}),
			RateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatforge",
				Name:      "rate_limit_rejected_total",
				Help:      "Total sends rejected by the hourly rate limit",
			}),
		}
		prometheus.MustRegister(
			global.MessagesSent,
			global.ChatFailures,
			global.TitlesGenerated,
			global.SearchRequests,
			global.FilesUploaded,
			global.ImagesGenerated,
			global.AudioTranscribed,
			global.CodeOperations,
			global.ProviderLatency,
			global.RateLimitRejected,
		)
	})
	return global
}
