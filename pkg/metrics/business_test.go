package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRegisterBusinessIsRepeatable(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterBusiness(reg))
	require.NoError(t, RegisterBusiness(reg))

	before := gatherCounter(t, reg, "webhook_events_total", map[string]string{"type": "invoice.payment_failed", "result": "processed"})
	ObserveWebhook("invoice.payment_failed", "processed")
	ObserveWebhook("invoice.payment_failed", "processed")
	ObserveRefund("single", "ok")
	ObservePaymentIntent("created")
	ObserveProcess("refund", "gateway", time.Now())

	after := gatherCounter(t, reg, "webhook_events_total", map[string]string{"type": "invoice.payment_failed", "result": "processed"})
	require.Equal(t, before+2, after)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "refunds_total")
	require.Contains(t, names, "payment_intents_total")
	require.Contains(t, names, "bp_dur")
}

func TestPrometheusMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{Subsystem: "test", Registerer: reg})

	r := gin.New()
	r.Use(p.HandlerFunc())
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	got := gatherCounter(t, reg, "test_req_total", map[string]string{"url": "/items/:id", "code": "200"})
	require.Equal(t, float64(1), got)

	mw := httptest.NewRecorder()
	p.Router().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, mw.Code)
}

func TestNewMetric(t *testing.T) {
	require.IsType(t, &prometheus.CounterVec{}, NewMetric(&Metric{Name: "c", Type: CounterVec, Args: []string{"a"}}, "test"))
	require.IsType(t, &prometheus.HistogramVec{}, NewMetric(&Metric{Name: "h", Type: HistogramVec, Args: []string{"a"}}, "test"))
	require.IsType(t, &prometheus.SummaryVec{}, NewMetric(&Metric{Name: "s", Type: SummaryVec, Args: []string{"a"}}, "test"))
	require.Panics(t, func() { NewMetric(&Metric{Name: "g", Type: "gauge"}, "test") })
}
