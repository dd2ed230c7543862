package handlers

import (
	"github.com/fatflowers/matchpay/internal/app/service/payment"
	"github.com/fatflowers/matchpay/internal/app/service/statistics"
	"github.com/fatflowers/matchpay/pkg/response"
)

// RespError is the envelope returned for failed RPCs.
type RespError struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    map[string]string        `json:"data"`
}

type RespCreatePaymentIntent struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    payment.CreatePaymentIntentResponse `json:"data"`
}

type RespConfirmPayment struct {
	Code    response.APIResponseCode       `json:"code"`
	Message string                         `json:"message"`
	Data    payment.ConfirmPaymentResponse `json:"data"`
}

type RespCheckoutSession struct {
	Code    response.APIResponseCode              `json:"code"`
	Message string                                `json:"message"`
	Data    payment.CreateCheckoutSessionResponse `json:"data"`
}

type RespPortalSession struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    payment.CreatePortalSessionResponse `json:"data"`
}

type RespRefundPayment struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    payment.RefundPaymentResponse `json:"data"`
}

type RespRefundAll struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    payment.RefundAllResponse `json:"data"`
}

// RespListPayments wraps ListPaymentsResponse in the standard envelope.
type RespListPayments struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListPaymentsResponse     `json:"data"`
}

// RespPaymentSummary wraps PaymentSummaryResponse in the standard envelope.
type RespPaymentSummary struct {
	Code    response.APIResponseCode          `json:"code"`
	Message string                            `json:"message"`
	Data    statistics.PaymentSummaryResponse `json:"data"`
}
