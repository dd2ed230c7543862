package webhook_log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/internal/app/repository/repositorytest"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/logctx"
)

func TestDeliveryFinishOverwritesReceived(t *testing.T) {
	repo := repositorytest.NewMemory()
	s := NewService(repo, zap.NewNop().Sugar())

	ctx := logctx.WithTraceID(context.Background(), "trace-1")
	d := s.Begin(ctx, "evt_1", "invoice.payment_failed", []byte(`{"id":"evt_1"}`))
	d.Finish(models.WebhookDeliveryLogStatusHandled, map[string]string{"result": "applied"})
	d.Finish(models.WebhookDeliveryLogStatusHandleFailed, nil)
	s.Wait()

	logs := repo.DeliveryLogs()
	require.Len(t, logs, 1)
	got := logs[0]
	require.Equal(t, "evt_1", got.EventID)
	require.Equal(t, "trace-1", got.TraceID)
	require.Equal(t, models.WebhookDeliveryLogStatusHandled, got.Status)
	require.NotNil(t, got.Result)
	require.JSONEq(t, `{"result":"applied"}`, string(*got.Result))
}

func TestFinishOnNilDeliveryIsNoop(t *testing.T) {
	var d *Delivery
	require.NotPanics(t, func() { d.Finish(models.WebhookDeliveryLogStatusHandled, nil) })
}
