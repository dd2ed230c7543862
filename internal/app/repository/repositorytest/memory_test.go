package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestMemory_ActivePaymentUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreatePayment(ctx, &models.PaymentRecord{SubjectID: "s1", UserID: "u1", GatewayPaymentID: "pi_1", Status: types.PaymentStatusPending}))
	err := m.CreatePayment(ctx, &models.PaymentRecord{SubjectID: "s1", UserID: "u1", GatewayPaymentID: "pi_2", Status: types.PaymentStatusPending})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	err = m.CreatePayment(ctx, &models.PaymentRecord{SubjectID: "s1", UserID: "u2", GatewayPaymentID: "pi_1", Status: types.PaymentStatusPending})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	// a refunded record does not block a new purchase
	require.NoError(t, m.CreatePayment(ctx, &models.PaymentRecord{SubjectID: "s2", UserID: "u1", GatewayPaymentID: "pi_3", Status: types.PaymentStatusRefunded}))
	require.NoError(t, m.CreatePayment(ctx, &models.PaymentRecord{SubjectID: "s2", UserID: "u1", GatewayPaymentID: "pi_4", Status: types.PaymentStatusPending}))
}

func TestMemory_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.PutSubject(&models.Subject{ID: "s1", VirtualAttendeesCount: 1})

	boom := errors.New("boom")
	err := m.Transaction(ctx, func(tx repository.Repository) error {
		require.NoError(t, tx.AddVirtualAttendees(ctx, "s1", 5))
		require.NoError(t, tx.RecordProcessedEvent(ctx, &models.ProcessedWebhookEvent{EventID: "evt_1", ProcessedAt: time.Now()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	s, err := m.GetSubject(ctx, "s1")
	require.NoError(t, err)
	require.EqualValues(t, 1, s.VirtualAttendeesCount)
	processed, err := m.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, processed)
}

func TestMemory_AttendeesFloorAtZero(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.PutSubject(&models.Subject{ID: "s1"})
	require.NoError(t, m.AddVirtualAttendees(ctx, "s1", -1))
	s, _ := m.GetSubject(ctx, "s1")
	require.EqualValues(t, 0, s.VirtualAttendeesCount)
	require.ErrorIs(t, m.AddVirtualAttendees(ctx, "missing", 1), repository.ErrNotFound)
}

func TestMemory_ScanPayments(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	for i, st := range []types.PaymentStatus{types.PaymentStatusCompleted, types.PaymentStatusRefunded, types.PaymentStatusCompleted} {
		m.PutPayment(&models.PaymentRecord{SubjectID: "s1", UserID: string(rune('a' + i)), GatewayPaymentID: string(rune('x' + i)), Status: st, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	rows, total, err := m.ScanPayments(ctx, &repository.ScanPaymentsRequest{
		Filters: []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"completed"}}},
		Size:    1,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 1)
	require.Equal(t, "c", rows[0].UserID)

	_, _, err = m.ScanPayments(ctx, &repository.ScanPaymentsRequest{
		Filters: []*types.CommonFilter{{Field: "password", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}},
	})
	require.Error(t, err)
}

func TestMemory_SubjectsSharingACustomer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.PutSubject(&models.Subject{ID: "venue-b", Billing: models.SubjectBilling{GatewayCustomerID: "cus_1", GatewaySubscriptionID: "sub_b"}})
	m.PutSubject(&models.Subject{ID: "venue-a", Billing: models.SubjectBilling{GatewayCustomerID: "cus_1", GatewaySubscriptionID: "sub_a"}})
	m.PutSubject(&models.Subject{ID: "venue-c", Billing: models.SubjectBilling{GatewayCustomerID: "cus_2"}})

	s, err := m.FindSubjectBySubscriptionID(ctx, "sub_b")
	require.NoError(t, err)
	require.Equal(t, "venue-b", s.ID)
	_, err = m.FindSubjectBySubscriptionID(ctx, "")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = m.FindSubjectBySubscriptionID(ctx, "sub_x")
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := m.ListSubjectsByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "venue-a", list[0].ID)
	require.Equal(t, "venue-b", list[1].ID)

	list, err = m.ListSubjectsByCustomerID(ctx, "")
	require.NoError(t, err)
	require.Empty(t, list)
}
