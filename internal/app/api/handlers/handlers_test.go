package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/internal/app/repository/repositorytest"
	"github.com/fatflowers/matchpay/internal/app/service/payment"
	"github.com/fatflowers/matchpay/internal/app/service/statistics"
	"github.com/fatflowers/matchpay/internal/app/service/webhook"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/types"
)

func init() { gin.SetMode(gin.TestMode) }

var nopLog = zap.NewNop().Sugar()

type stubPayments struct {
	intentReq *payment.CreatePaymentIntentRequest
	err       error
}

func (s *stubPayments) CreatePaymentIntent(_ context.Context, _ *types.Caller, req *payment.CreatePaymentIntentRequest) (*payment.CreatePaymentIntentResponse, error) {
	s.intentReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &payment.CreatePaymentIntentResponse{ClientSecret: "pi_1_secret", PaymentIntentID: "pi_1", PaymentID: "pay-1", Amount: 999, Currency: "usd"}, nil
}

func (s *stubPayments) ConfirmPayment(_ context.Context, _ *types.Caller, _ *payment.ConfirmPaymentRequest) (*payment.ConfirmPaymentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &payment.ConfirmPaymentResponse{Success: true}, nil
}

func (s *stubPayments) CreateCheckoutSession(_ context.Context, _ *types.Caller, _ *payment.CreateCheckoutSessionRequest) (*payment.CreateCheckoutSessionResponse, error) {
	return &payment.CreateCheckoutSessionResponse{SessionID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

func (s *stubPayments) CreatePortalSession(_ context.Context, _ *types.Caller) (*payment.CreatePortalSessionResponse, error) {
	return nil, apperr.NotFound("no billing account")
}

func (s *stubPayments) RefundPayment(_ context.Context, _ *types.Caller, _ *payment.RefundPaymentRequest) (*payment.RefundPaymentResponse, error) {
	return nil, errors.New("pq: connection reset")
}

func (s *stubPayments) RefundAll(_ context.Context, _ *types.Caller, _ *payment.RefundAllRequest) (*payment.RefundAllResponse, error) {
	return &payment.RefundAllResponse{Success: true, RefundedCount: 2}, nil
}

func post(r http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func paymentEngine(svc PaymentService) *gin.Engine {
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1/payment"), svc, nopLog)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1/payment"), nil, nopLog)
	RegisterWebhookRoutes(r.Group("/api/v1/webhook"), nil, nopLog)
	RegisterAdminPaymentRoutes(r.Group("/api/v1/admin"), nil, nil, nopLog)

	var got []string
	for _, rt := range r.Routes() {
		got = append(got, rt.Method+" "+rt.Path)
	}
	require.ElementsMatch(t, []string{
		"POST /api/v1/payment/create_payment_intent",
		"POST /api/v1/payment/confirm_payment",
		"POST /api/v1/payment/create_checkout_session",
		"POST /api/v1/payment/create_portal_session",
		"POST /api/v1/payment/refund",
		"POST /api/v1/payment/refund_all",
		"POST /api/v1/webhook/stripe",
		"POST /api/v1/admin/list_payments",
		"POST /api/v1/admin/get_payment_summary",
	}, got)
}

func TestCreatePaymentIntent_OK(t *testing.T) {
	svc := &stubPayments{}
	w := post(paymentEngine(svc), "/api/v1/payment/create_payment_intent", `{"subject_id":"wp-1","product_id":"virtual_attendance"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.EqualValues(t, 0, body["code"])
	require.Equal(t, "pi_1_secret", body["data"].(map[string]any)["client_secret"])
	require.Equal(t, &payment.CreatePaymentIntentRequest{SubjectID: "wp-1", ProductID: "virtual_attendance"}, svc.intentReq)
}

func TestCreatePaymentIntent_RejectsClientPrice(t *testing.T) {
	for _, field := range []string{"amount", "price", "currency"} {
		svc := &stubPayments{}
		w := post(paymentEngine(svc), "/api/v1/payment/create_payment_intent", `{"subject_id":"wp-1","`+field+`":1}`)
		require.Equal(t, http.StatusBadRequest, w.Code, field)
		require.Nil(t, svc.intentReq, field)
	}
}

func TestCreatePaymentIntent_MalformedBody(t *testing.T) {
	w := post(paymentEngine(&stubPayments{}), "/api/v1/payment/create_payment_intent", `{"subject_id":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentRoutes_RequiredFields(t *testing.T) {
	cases := []struct {
		path, body, message string
	}{
		{"/api/v1/payment/create_payment_intent", `{"product_id":"virtual_attendance"}`, "subject_id is required"},
		{"/api/v1/payment/confirm_payment", ``, "payment_intent_id is required"},
		{"/api/v1/payment/confirm_payment", `{"payment_intent_id":"pi_1"}`, "subject_id is required"},
		{"/api/v1/payment/create_checkout_session", `{"subject_id":"venue-1"}`, "price_id is required"},
		{"/api/v1/payment/refund_all", `{}`, "subject_id is required"},
	}
	for _, tc := range cases {
		svc := &stubPayments{}
		w := post(paymentEngine(svc), tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, w.Code, tc.path)
		require.Equal(t, tc.message, decode(t, w)["message"], tc.path)
		require.Nil(t, svc.intentReq, tc.path)
	}
}

func TestPaymentRoutes_MapErrorCodes(t *testing.T) {
	svc := &stubPayments{err: apperr.AlreadyExists("already purchased")}
	w := post(paymentEngine(svc), "/api/v1/payment/create_payment_intent", `{"subject_id":"wp-1"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already purchased", decode(t, w)["message"])

	w = post(paymentEngine(&stubPayments{}), "/api/v1/payment/create_portal_session", ``)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = post(paymentEngine(&stubPayments{}), "/api/v1/payment/refund", `{"subject_id":"wp-1"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, apperr.InternalMessage, decode(t, w)["message"])
	require.NotContains(t, w.Body.String(), "pq:")
}

func TestRefundAll_OK(t *testing.T) {
	w := post(paymentEngine(&stubPayments{}), "/api/v1/payment/refund_all", `{"subject_id":"wp-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, decode(t, w)["data"].(map[string]any)["refunded_count"])
}

type stubGate struct {
	payload   []byte
	signature string
	outcome   webhook.Outcome
	err       error
}

func (g *stubGate) Handle(_ context.Context, payload []byte, signature string) (webhook.Outcome, error) {
	g.payload, g.signature = payload, signature
	return g.outcome, g.err
}

func webhookEngine(g WebhookGate) *gin.Engine {
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhook"), g, nopLog)
	return r
}

func TestStripeWebhook_PassesRawBodyAndSignature(t *testing.T) {
	g := &stubGate{outcome: webhook.OutcomeProcessed}
	raw := `{"id":"evt_1",  "type":"x"}`
	w := post(webhookEngine(g), "/api/v1/webhook/stripe", raw, "Stripe-Signature", "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true,"status":"processed"}`, w.Body.String())
	require.Equal(t, raw, string(g.payload))
	require.Equal(t, "t=1,v1=abc", g.signature)
}

func TestStripeWebhook_StatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		gate   *stubGate
		status int
		body   string
	}{
		{"duplicate", &stubGate{outcome: webhook.OutcomeDuplicate}, http.StatusOK, `{"received":true,"status":"duplicate"}`},
		{"bad signature", &stubGate{err: apperr.InvalidArgument("invalid signature")}, http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"handler failure", &stubGate{err: apperr.Internal(errors.New("db down"))}, http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(webhookEngine(tc.gate), "/api/v1/webhook/stripe", `{}`)
			require.Equal(t, tc.status, w.Code)
			require.JSONEq(t, tc.body, w.Body.String())
		})
	}
}

func TestStripeWebhook_PayloadTooLarge(t *testing.T) {
	g := &stubGate{outcome: webhook.OutcomeProcessed}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/stripe", bytes.NewReader(make([]byte, maxWebhookBody+1)))
	w := httptest.NewRecorder()
	webhookEngine(g).ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Nil(t, g.payload)
}

func adminEngine(m *repositorytest.Memory) *gin.Engine {
	r := gin.New()
	RegisterAdminPaymentRoutes(r.Group("/api/v1/admin"), m, statistics.New(m), nopLog)
	return r
}

func TestListPayments(t *testing.T) {
	m := repositorytest.NewMemory()
	m.PutPayment(&models.PaymentRecord{ID: "p1", SubjectID: "wp-1", UserID: "u1", Amount: 999, Currency: "usd", Status: types.PaymentStatusCompleted})
	m.PutPayment(&models.PaymentRecord{ID: "p2", SubjectID: "wp-1", UserID: "u2", Amount: 999, Currency: "usd", Status: types.PaymentStatusRefunded})
	m.PutPayment(&models.PaymentRecord{ID: "p3", SubjectID: "wp-2", UserID: "u1", Amount: 999, Currency: "usd", Status: types.PaymentStatusCompleted})

	w := post(adminEngine(m), "/api/v1/admin/list_payments", `{"filters":[{"field":"subject_id","operator":"eq","values":["wp-1"]}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data ListPaymentsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.EqualValues(t, 2, body.Data.Total)
	require.Len(t, body.Data.Items, 2)

	w = post(adminEngine(m), "/api/v1/admin/list_payments", `{"filters":[{"field":"password","operator":"eq","values":["x"]}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = post(adminEngine(m), "/api/v1/admin/list_payments", `{"sort_by":"amount; DROP TABLE payment_record"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPaymentSummary(t *testing.T) {
	m := repositorytest.NewMemory()
	m.PutSubject(&models.Subject{ID: "wp-1", Kind: types.SubjectKindEvent, VirtualAttendeesCount: 1})
	m.PutPayment(&models.PaymentRecord{SubjectID: "wp-1", UserID: "u1", Amount: 999, Status: types.PaymentStatusCompleted})

	w := post(adminEngine(m), "/api/v1/admin/get_payment_summary", `{"subject_id":"wp-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 999, decode(t, w)["data"].(map[string]any)["collected_amount"])

	w = post(adminEngine(m), "/api/v1/admin/get_payment_summary", `{"subject_id":"nope"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = post(adminEngine(m), "/api/v1/admin/get_payment_summary", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "subject_id is required", decode(t, w)["message"])
}
