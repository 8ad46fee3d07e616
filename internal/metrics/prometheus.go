package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chateval_chat_duration_seconds",
			Help:    "End-to-end chat request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chateval_chat_total",
			Help: "Total number of chat requests processed",
		},
		[]string{"kind", "status"},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chateval_evaluations_total",
			Help: "Total judgment calls by criterion",
		},
		[]string{"criterion"},
	)

	GroundednessLabels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chateval_groundedness_labels_total",
			Help: "Distribution of groundedness labels assigned",
		},
		[]string{"label"},
	)

	DocumentsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chateval_documents_uploaded_total",
			Help: "Total PDF uploads accepted",
		},
	)

	ExtractionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chateval_extraction_failures_total",
			Help: "Total PDF uploads rejected by the extractor",
		},
	)

	HistoryExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chateval_history_exports_total",
			Help: "Total history exports by format",
		},
		[]string{"format"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(GroundednessLabels)
	prometheus.MustRegister(DocumentsUploaded)
	prometheus.MustRegister(ExtractionFailures)
	prometheus.MustRegister(HistoryExports)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
