package stripe_client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/pkg/config"
)

// ErrNotConfigured is returned by every gateway call when no secret key is set.
var ErrNotConfigured = errors.New("stripe secret key is not configured")

// Client wraps the stripe-go API client with the calls payments need.
type Client struct {
	api           *client.API
	webhookSecret string
	log           *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Client {
	c := &Client{webhookSecret: strings.TrimSpace(cfg.Stripe.WebhookSecret), log: log}
	if key := strings.TrimSpace(cfg.Stripe.SecretKey); key != "" {
		c.api = client.New(key, nil)
	} else {
		log.Warnw("stripe secret key is empty, gateway calls will fail")
	}
	return c
}

var Module = fx.Options(
	fx.Provide(New),
)

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	CustomerID   string
	Metadata     map[string]string
}

// Succeeded reports whether the gateway considers the payment complete.
func (pi *PaymentIntent) Succeeded() bool {
	return pi != nil && pi.Status == string(stripe.PaymentIntentStatusSucceeded)
}

type CreatePaymentIntentParams struct {
	Amount         int64
	Currency       string
	CustomerID     string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type Refund struct {
	ID     string
	Status string
}

type CreateCheckoutSessionParams struct {
	PriceID    string
	CustomerID string
	Email      string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

func (c *Client) ready() error {
	if c.api == nil {
		return ErrNotConfigured
	}
	return nil
}

func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", wrapStripeError(err, "create customer")
	}
	return cust.ID, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (*PaymentIntent, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "create payment intent")
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, wrapStripeError(err, "get payment intent")
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := c.api.PaymentIntents.Cancel(id, params); err != nil {
		return wrapStripeError(err, "cancel payment intent")
	}
	return nil
}

// CreateRefund refunds the whole amount of a payment intent.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID, reason, idempotencyKey string) (*Refund, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	if isGatewayRefundReason(reason) {
		params.Reason = stripe.String(reason)
	} else if reason != "" {
		params.AddMetadata("reason", reason)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	r, err := c.api.Refunds.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "create refund")
	}
	return &Refund{ID: r.ID, Status: string(r.Status)}, nil
}

func isGatewayRefundReason(reason string) bool {
	switch stripe.RefundReason(reason) {
	case stripe.RefundReasonDuplicate, stripe.RefundReasonFraudulent, stripe.RefundReasonRequestedByCustomer:
		return true
	}
	return false
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:       stripe.String(p.SuccessURL),
		CancelURL:        stripe.String(p.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: p.Metadata},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "create checkout session")
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	params := &stripe.BillingPortalSessionParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", wrapStripeError(err, "create portal session")
	}
	return s.URL, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}

// wrapStripeError keeps the gateway's message for logs. Callers never show
// it to API clients.
func wrapStripeError(err error, op string) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("stripe %s: %s (code=%s, status=%d): %w", op, se.Msg, se.Code, se.HTTPStatusCode, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}
