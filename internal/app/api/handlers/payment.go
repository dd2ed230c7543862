package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/matchpay/internal/app/api/middleware"
	"github.com/fatflowers/matchpay/internal/app/service/payment"
	"github.com/fatflowers/matchpay/pkg/response"
	"github.com/fatflowers/matchpay/pkg/types"
)

// PaymentService is implemented by payment.Service.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, caller *types.Caller, req *payment.CreatePaymentIntentRequest) (*payment.CreatePaymentIntentResponse, error)
	ConfirmPayment(ctx context.Context, caller *types.Caller, req *payment.ConfirmPaymentRequest) (*payment.ConfirmPaymentResponse, error)
	CreateCheckoutSession(ctx context.Context, caller *types.Caller, req *payment.CreateCheckoutSessionRequest) (*payment.CreateCheckoutSessionResponse, error)
	CreatePortalSession(ctx context.Context, caller *types.Caller) (*payment.CreatePortalSessionResponse, error)
	RefundPayment(ctx context.Context, caller *types.Caller, req *payment.RefundPaymentRequest) (*payment.RefundPaymentResponse, error)
	RefundAll(ctx context.Context, caller *types.Caller, req *payment.RefundAllRequest) (*payment.RefundAllResponse, error)
}

// @Summary      Create Payment Intent
// @Description  Issues a gateway payment intent for virtual attendance. The price is resolved on the server; amount, price and currency in the body are rejected.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.CreatePaymentIntentRequest true "Subject and optional product"
// @Success      200  {object}  handlers.RespCreatePaymentIntent
// @Failure      409  {object}  handlers.RespError
// @Router       /api/v1/payment/create_payment_intent [post]
func ApiCreatePaymentIntent(svc PaymentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.CreatePaymentIntentRequest
		if err := bindJSON(c, &req, clientPriceFields...); err != nil {
			writeError(c, log, err)
			return
		}
		res, err := svc.CreatePaymentIntent(c.Request.Context(), mw.CallerFrom(c), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Confirm Payment
// @Description  Confirms a succeeded payment intent and grants attendance. Safe to retry.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.ConfirmPaymentRequest true "Payment intent and subject"
// @Success      200  {object}  handlers.RespConfirmPayment
// @Failure      412  {object}  handlers.RespError
// @Router       /api/v1/payment/confirm_payment [post]
func ApiConfirmPayment(svc PaymentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ConfirmPaymentRequest
		if err := bindJSON(c, &req, clientPriceFields...); err != nil {
			writeError(c, log, err)
			return
		}
		res, err := svc.ConfirmPayment(c.Request.Context(), mw.CallerFrom(c), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Create Checkout Session
// @Description  Starts a subscription checkout for a subject owned by the caller.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.CreateCheckoutSessionRequest true "Subject and configured price id"
// @Success      200  {object}  handlers.RespCheckoutSession
// @Router       /api/v1/payment/create_checkout_session [post]
func ApiCreateCheckoutSession(svc PaymentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.CreateCheckoutSessionRequest
		if err := bindJSON(c, &req, clientPriceFields...); err != nil {
			writeError(c, log, err)
			return
		}
		res, err := svc.CreateCheckoutSession(c.Request.Context(), mw.CallerFrom(c), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Create Portal Session
// @Description  Opens the billing portal for the caller's gateway customer.
// @Tags         Payment
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespPortalSession
// @Router       /api/v1/payment/create_portal_session [post]
func ApiCreatePortalSession(svc PaymentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.CreatePortalSession(c.Request.Context(), mw.CallerFrom(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Refund Payment
// @Description  Refunds the completed payment of one attendee. The attendee may refund themselves; the host may refund anyone.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.RefundPaymentRequest true "Refund request"
// @Success      200  {object}  handlers.RespRefundPayment
// @Router       /api/v1/payment/refund [post]
func ApiRefundPayment(svc PaymentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.RefundPaymentRequest
		if err := bindJSON(c, &req, clientPriceFields...); err != nil {
			writeError(c, log, err)
			return
		}
		res, err := svc.RefundPayment(c.Request.Context(), mw.CallerFrom(c), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Refund All Payments
// @Description  Host only. Refunds every completed payment of the subject and resets the attendee count.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body payment.RefundAllRequest true "Bulk refund request"
// @Success      200  {object}  handlers.RespRefundAll
// @Router       /api/v1/payment/refund_all [post]
func ApiRefundAll(svc PaymentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.RefundAllRequest
		if err := bindJSON(c, &req, clientPriceFields...); err != nil {
			writeError(c, log, err)
			return
		}
		res, err := svc.RefundAll(c.Request.Context(), mw.CallerFrom(c), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc PaymentService, log *zap.SugaredLogger) {
	r.POST("/create_payment_intent", ApiCreatePaymentIntent(svc, log))
	r.POST("/confirm_payment", ApiConfirmPayment(svc, log))
	r.POST("/create_checkout_session", ApiCreateCheckoutSession(svc, log))
	r.POST("/create_portal_session", ApiCreatePortalSession(svc, log))
	r.POST("/refund", ApiRefundPayment(svc, log))
	r.POST("/refund_all", ApiRefundAll(svc, log))
}
