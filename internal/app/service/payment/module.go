package payment

import (
	"go.uber.org/fx"

	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
)

// Module exposes the payment service via Fx, backed by the stripe client.
var Module = fx.Options(
	fx.Provide(func(c *stripe_client.Client) Gateway { return c }),
	fx.Provide(New),
)
