package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/types"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ScanPaymentsRequest selects payment records for admin listing.
type ScanPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ScannablePaymentColumns are the columns admin filters and sorting may reference.
var ScannablePaymentColumns = []string{
	"id", "subject_id", "user_id", "product_id", "status", "gateway_payment_id",
	"amount", "currency", "created_at", "completed_at", "refunded_at",
}

// PaymentStatusTotal aggregates payment records of one status.
type PaymentStatusTotal struct {
	Status types.PaymentStatus `json:"status"`
	Count  int64               `json:"count"`
	Amount int64               `json:"amount"`
}

// Repository is the store behind payments and webhook reconciliation.
//
// Reads of a single payment record or subject made inside Transaction lock
// the row until the transaction ends. Outside a transaction they are plain
// reads.
type Repository interface {
	// Transaction runs fn atomically. Any error returned by fn rolls back
	// every write made through tx.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	GetSubject(ctx context.Context, subjectID string) (*models.Subject, error)
	FindSubjectBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subject, error)
	// ListSubjectsByCustomerID returns every subject billed to customerID,
	// ordered by id. One customer may pay for several subjects.
	ListSubjectsByCustomerID(ctx context.Context, customerID string) ([]*models.Subject, error)
	// UpdateSubjectBilling overwrites plan, features and billing of s.
	UpdateSubjectBilling(ctx context.Context, s *models.Subject) error
	// AddVirtualAttendees adds delta to the counter, never going below zero.
	AddVirtualAttendees(ctx context.Context, subjectID string, delta int64) error
	SetVirtualAttendees(ctx context.Context, subjectID string, count int64) error

	GetPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.PaymentRecord, error)
	// FindActivePayment returns the pending or completed record of the pair.
	FindActivePayment(ctx context.Context, subjectID, userID string) (*models.PaymentRecord, error)
	FindCompletedPayment(ctx context.Context, subjectID, userID string) (*models.PaymentRecord, error)
	ListCompletedPayments(ctx context.Context, subjectID string) ([]*models.PaymentRecord, error)
	// CreatePayment returns ErrDuplicate when the pair already has an active
	// record or the gateway payment id is taken.
	CreatePayment(ctx context.Context, p *models.PaymentRecord) error
	UpdatePayment(ctx context.Context, p *models.PaymentRecord) error
	ScanPayments(ctx context.Context, req *ScanPaymentsRequest) ([]*models.PaymentRecord, int64, error)
	SummarizePayments(ctx context.Context, subjectID string) ([]*PaymentStatusTotal, error)
	CreatePaymentLog(ctx context.Context, l *models.PaymentLog) error

	GetMember(ctx context.Context, subjectID, userID string) (*models.SubjectMember, error)
	// MarkMemberPaid creates or updates the membership with has_paid=true.
	MarkMemberPaid(ctx context.Context, subjectID, userID string, at time.Time) error
	MarkMemberRefunded(ctx context.Context, subjectID, userID string, at time.Time) error

	GetGatewayCustomer(ctx context.Context, userID string) (*models.GatewayCustomer, error)
	SaveGatewayCustomer(ctx context.Context, c *models.GatewayCustomer) error

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	// RecordProcessedEvent returns ErrDuplicate when the event is already in
	// the ledger.
	RecordProcessedEvent(ctx context.Context, e *models.ProcessedWebhookEvent) error

	SaveWebhookDeliveryLog(ctx context.Context, l *models.WebhookDeliveryLog) error
}
