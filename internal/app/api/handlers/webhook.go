package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/internal/app/service/webhook"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
)

const maxWebhookBody = 1 << 20

// WebhookGate is implemented by webhook.Gate.
type WebhookGate interface {
	Handle(ctx context.Context, payload []byte, signature string) (webhook.Outcome, error)
}

type webhookAck struct {
	Received bool            `json:"received"`
	Status   webhook.Outcome `json:"status"`
}

type webhookError struct {
	Error string `json:"error"`
}

// @Summary      Stripe Webhook
// @Description  Receives gateway events. The raw body is verified against the Stripe-Signature header; every event id is applied at most once.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Gateway signature"
// @Success      200  {object}  handlers.webhookAck
// @Failure      400  {object}  handlers.webhookError
// @Failure      500  {object}  handlers.webhookError
// @Router       /api/v1/webhook/stripe [post]
func ApiStripeWebhook(gate WebhookGate, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, webhookError{Error: "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, webhookError{Error: "unreadable body"})
			return
		}

		outcome, err := gate.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			e := apperr.Normalize(err)
			if e.Code == apperr.CodeInvalidArgument {
				c.JSON(http.StatusBadRequest, webhookError{Error: e.Message})
				return
			}
			logctx.FromGin(c, log).Errorw("webhook_stripe_failed", "err", err)
			c.JSON(http.StatusInternalServerError, webhookError{Error: apperr.InternalMessage})
			return
		}
		c.JSON(http.StatusOK, webhookAck{Received: true, Status: outcome})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, gate WebhookGate, log *zap.SugaredLogger) {
	r.POST("/stripe", ApiStripeWebhook(gate, log))
}
