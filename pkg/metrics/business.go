package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	businessOnce sync.Once
	webhookCnt   *prometheus.CounterVec
	refundCnt    *prometheus.CounterVec
	intentCnt    *prometheus.CounterVec
	bpDur        *prometheus.HistogramVec
)

func ensureBusiness() {
	businessOnce.Do(func() {
		webhookCnt = NewMetric(MetricsWebhookEvents, "").(*prometheus.CounterVec)
		refundCnt = NewMetric(MetricsRefunds, "").(*prometheus.CounterVec)
		intentCnt = NewMetric(MetricsPaymentIntents, "").(*prometheus.CounterVec)
		bpDur = NewMetric(MetricsBusinessProcess, "").(*prometheus.HistogramVec)
		MetricsWebhookEvents.MetricCollector = webhookCnt
		MetricsRefunds.MetricCollector = refundCnt
		MetricsPaymentIntents.MetricCollector = intentCnt
		MetricsBusinessProcess.MetricCollector = bpDur
	})
}

// RegisterBusiness registers the business collectors with reg. Already
// registered collectors are left in place.
func RegisterBusiness(reg prometheus.Registerer) error {
	ensureBusiness()
	for _, m := range BusinessMetrics {
		if err := reg.Register(m.MetricCollector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveWebhook(eventType, result string) {
	ensureBusiness()
	webhookCnt.WithLabelValues(eventType, result).Inc()
}

func ObserveRefund(mode, result string) {
	ensureBusiness()
	refundCnt.WithLabelValues(mode, result).Inc()
}

func ObservePaymentIntent(result string) {
	ensureBusiness()
	intentCnt.WithLabelValues(result).Inc()
}

// ObserveProcess records the latency of a business process step since start.
func ObserveProcess(typ, subtype string, start time.Time) {
	ensureBusiness()
	bpDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}
