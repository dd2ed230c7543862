package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatflowers/matchpay/pkg/types"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
env: prod
server:
  port: 9000
stripe:
  webhook_secret: whsec_test
redis:
  lock_ttl: 10s
products:
  - id: virtual_attendance
    subject_kind: event
    type: one_time
    amount: 999
    currency: usd
  - id: fan_premium
    subject_kind: fan
    type: subscription
    gateway_price_id: price_fan
    plan: premium
    features: [ad_free, live_chat]
`

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("APP_CONFIG_FILE", path)
}

func TestNew_LoadsFileAndDefaults(t *testing.T) {
	writeConfig(t, sampleYAML)

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Env)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "whsec_test", cfg.Stripe.WebhookSecret)
	require.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	require.Len(t, cfg.Products, 2)
	require.Equal(t, []string{"ad_free", "live_chat"}, cfg.Products[1].Features)
}

func TestNew_EnvOverridesSecret(t *testing.T) {
	writeConfig(t, sampleYAML)
	t.Setenv("APP_STRIPE_WEBHOOK_SECRET", "whsec_env")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "whsec_env", cfg.Stripe.WebhookSecret)
}

func TestValidate_RejectsBadCatalogue(t *testing.T) {
	cfg := &Config{Products: []*types.Product{{ID: "x", Type: types.ProductTypeOneTime}}}
	require.Error(t, cfg.Validate())

	cfg = &Config{Products: []*types.Product{
		{ID: "a", Type: types.ProductTypeOneTime, Amount: 1, Currency: "usd"},
		{ID: "a", Type: types.ProductTypeOneTime, Amount: 1, Currency: "usd"},
	}}
	require.Error(t, cfg.Validate())
}

func TestProductLookups(t *testing.T) {
	cfg := &Config{Products: []*types.Product{
		{ID: "va", SubjectKind: types.SubjectKindEvent, Type: types.ProductTypeOneTime, Amount: 999, Currency: "usd"},
		{ID: "fan_premium", SubjectKind: types.SubjectKindFan, Type: types.ProductTypeSubscription, GatewayPriceID: "price_fan", Plan: "premium"},
	}}

	p, err := cfg.GetOneTimeProduct(types.SubjectKindEvent, "")
	require.NoError(t, err)
	require.Equal(t, "va", p.ID)

	_, err = cfg.GetOneTimeProduct(types.SubjectKindEvent, "fan_premium")
	require.Error(t, err)

	_, err = cfg.GetOneTimeProduct(types.SubjectKindVenue, "")
	require.Error(t, err)

	require.Equal(t, "fan_premium", cfg.GetSubscriptionProduct(types.SubjectKindFan).ID)
	require.Nil(t, cfg.GetSubscriptionProductByPriceID(types.SubjectKindVenue, "price_fan"))
	require.NotNil(t, cfg.GetSubscriptionProductByPriceID(types.SubjectKindFan, "price_fan"))
}
