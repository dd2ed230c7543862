package webhook

import (
	"go.uber.org/fx"

	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
)

var Module = fx.Options(
	fx.Provide(func(c *stripe_client.Client) Verifier { return c }),
	fx.Provide(NewRouter),
	fx.Provide(NewGate),
)
