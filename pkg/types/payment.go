package types

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Active reports whether the status blocks a new purchase for the same
// subject and user.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted
}

// ActivePaymentStatuses is the set guarded by the one-active-payment invariant.
var ActivePaymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusCompleted}

type PaymentChangeReason string

const (
	PaymentChangeReasonIssued        PaymentChangeReason = "issued"
	PaymentChangeReasonConfirmed     PaymentChangeReason = "confirmed"
	PaymentChangeReasonWebhook       PaymentChangeReason = "webhook"
	PaymentChangeReasonRefund        PaymentChangeReason = "refund"
	PaymentChangeReasonAttemptFailed PaymentChangeReason = "attempt_failed"
	PaymentChangeReasonFailed        PaymentChangeReason = "failed"
)

// Metadata keys written on gateway objects and read back from webhooks.
const (
	MetadataSubjectID = "subjectId"
	MetadataUserID    = "userId"
	MetadataProductID = "productId"
	MetadataPaymentID = "paymentId"
)

const DefaultRefundReason = "requested_by_customer"
