package types

type SubjectKind string

const (
	SubjectKindFan   SubjectKind = "fan"
	SubjectKindVenue SubjectKind = "venue"
	SubjectKindEvent SubjectKind = "event"
)

// PlanFree is the plan every subject falls back to when it has no active
// paid subscription.
const PlanFree = "free"

type BillingStatus string

const (
	BillingStatusNone     BillingStatus = ""
	BillingStatusActive   BillingStatus = "active"
	BillingStatusCanceled BillingStatus = "canceled"
)

// BillingPaymentFailed is written to billing.paymentStatus when an invoice fails.
const BillingPaymentFailed = "failed"

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
