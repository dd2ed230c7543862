package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/types"
)

// TestWatchPartyLifecycle walks one attendee through purchase, confirmation
// and refund on a subject priced at 999 minor units.
func TestWatchPartyLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreatePaymentIntent(ctx, caller("u1"), &CreatePaymentIntentRequest{SubjectID: "wp-1"})
	require.NoError(t, err)
	require.EqualValues(t, 999, first.Amount)
	r1 := f.repo.Payments("wp-1")[0]
	require.Equal(t, types.PaymentStatusPending, r1.Status)

	_, err = f.svc.CreatePaymentIntent(ctx, caller("u1"), &CreatePaymentIntentRequest{SubjectID: "wp-1"})
	require.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))

	f.gw.succeed(first.PaymentIntentID)
	_, err = f.svc.ConfirmPayment(ctx, caller("u1"), &ConfirmPaymentRequest{PaymentIntentID: first.PaymentIntentID, SubjectID: "wp-1"})
	require.NoError(t, err)
	r1, err = f.repo.GetPayment(ctx, r1.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCompleted, r1.Status)
	member, err := f.repo.GetMember(ctx, "wp-1", "u1")
	require.NoError(t, err)
	require.True(t, member.HasPaid)
	require.EqualValues(t, 1, attendees(t, f, "wp-1"))

	_, err = f.svc.RefundPayment(ctx, caller("host"), &RefundPaymentRequest{SubjectID: "wp-1", UserID: "u1"})
	require.NoError(t, err)
	r1, err = f.repo.GetPayment(ctx, r1.ID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusRefunded, r1.Status)
	require.EqualValues(t, 0, attendees(t, f, "wp-1"))

	_, err = f.svc.RefundPayment(ctx, caller("host"), &RefundPaymentRequest{SubjectID: "wp-1", UserID: "u1"})
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	require.Equal(t, 1, f.gw.refundCount())
}
