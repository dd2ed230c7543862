package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// HistogramBuckets in milliseconds. Gateway calls dominate the slow end.
var HistogramBuckets = []float64{
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	750, 1000, 1500, 2000, 3000, 5000, 10000,
	20000, 30000, 60000,
}

// MetricType selects the collector NewMetric builds.
type MetricType string

const (
	CounterVec   MetricType = "counter_vec"
	HistogramVec MetricType = "histogram_vec"
	SummaryVec   MetricType = "summary_vec"
)

// Metric describes one labelled collector. MetricCollector is filled in once
// the collector exists.
type Metric struct {
	MetricCollector prometheus.Collector
	Name            string
	Description     string
	Type            MetricType
	Args            []string
}

// NewMetric builds the collector for m.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case CounterVec:
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
		}, m.Args)
	case HistogramVec:
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
			Buckets:   HistogramBuckets,
		}, m.Args)
	case SummaryVec:
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
		}, m.Args)
	}
	panic(fmt.Sprintf("metrics: %s has unsupported type %q", m.Name, m.Type))
}

// HTTP metrics, labelled by status, method, route template and referer.
var (
	reqCnt = &Metric{
		Name:        "req_total",
		Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
		Type:        CounterVec,
		Args:        []string{"code", "method", "url", "ref"},
	}
	reqDur = &Metric{
		Name:        "req_dur_ms",
		Description: "The HTTP request latencies in milliseconds.",
		Type:        HistogramVec,
		Args:        []string{"code", "method", "url", "ref"},
	}
	resSz = &Metric{
		Name:        "resp_sz_bytes",
		Description: "The HTTP response sizes in bytes.",
		Type:        SummaryVec,
		Args:        []string{"code", "method", "url", "ref"},
	}
	reqSz = &Metric{
		Name:        "req_sz_bytes",
		Description: "The HTTP request sizes in bytes.",
		Type:        SummaryVec,
		Args:        []string{"code", "method", "url", "ref"},
	}
)

var standardMetrics = []*Metric{reqCnt, reqDur, resSz, reqSz}

// Business metrics.
var (
	MetricsBusinessProcess = &Metric{
		Name:        "bp_dur",
		Description: "process latency in milliseconds",
		Type:        HistogramVec,
		Args:        []string{"type", "subtype"},
	}
	MetricsWebhookEvents = &Metric{
		Name:        "webhook_events_total",
		Description: "Webhook deliveries partitioned by event type and result.",
		Type:        CounterVec,
		Args:        []string{"type", "result"},
	}
	MetricsRefunds = &Metric{
		Name:        "refunds_total",
		Description: "Refund attempts partitioned by mode (single, bulk) and result.",
		Type:        CounterVec,
		Args:        []string{"mode", "result"},
	}
	MetricsPaymentIntents = &Metric{
		Name:        "payment_intents_total",
		Description: "Payment intent issuance partitioned by result.",
		Type:        CounterVec,
		Args:        []string{"result"},
	}
)

// BusinessMetrics are registered once per process alongside the HTTP metrics.
var BusinessMetrics = []*Metric{
	MetricsBusinessProcess,
	MetricsWebhookEvents,
	MetricsRefunds,
	MetricsPaymentIntents,
}

// RefererKey is the request header used as the ref label.
const RefererKey = "X-Referer"
