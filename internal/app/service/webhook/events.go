package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Gateway event types the router understands.
const (
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypeSubscriptionCreated      = "customer.subscription.created"
	TypeSubscriptionUpdated      = "customer.subscription.updated"
	TypeSubscriptionDeleted      = "customer.subscription.deleted"
	TypeInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	TypeInvoicePaymentFailed     = "invoice.payment_failed"
	TypePaymentIntentSucceeded   = "payment_intent.succeeded"
	TypePaymentIntentFailed      = "payment_intent.payment_failed"
	TypePaymentIntentCanceled    = "payment_intent.canceled"
)

// Event is one of the variants below. The set is closed: only this package
// can add a variant.
type Event interface {
	isEvent()
}

type CheckoutSessionCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	CustomerEmail  string
	Metadata       map[string]string
}

// SubscriptionChanged covers both created and updated notifications.
type SubscriptionChanged struct {
	Created          bool
	SubscriptionID   string
	CustomerID       string
	Status           string
	PriceIDs         []string
	CurrentPeriodEnd time.Time
	Metadata         map[string]string
}

type SubscriptionDeleted struct {
	SubscriptionID string
	CustomerID     string
	CanceledAt     time.Time
	Metadata       map[string]string
}

// InvoicePaymentSucceeded carries the metadata of the subscription it bills.
type InvoicePaymentSucceeded struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	AmountPaid     int64
	PaidAt         time.Time
	Metadata       map[string]string
}

type InvoicePaymentFailed struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

type PaymentIntentSucceeded struct {
	PaymentIntentID string
	Metadata        map[string]string
}

// PaymentIntentFailed is one declined attempt. The intent stays payable.
type PaymentIntentFailed struct {
	PaymentIntentID string
	Metadata        map[string]string
	FailureMessage  string
}

// PaymentIntentCanceled means the intent can no longer be paid.
type PaymentIntentCanceled struct {
	PaymentIntentID    string
	Metadata           map[string]string
	CancellationReason string
}

// UnknownEvent is any type the router does not handle. It is accepted and
// does nothing.
type UnknownEvent struct {
	Type string
}

func (CheckoutSessionCompleted) isEvent() {}
func (SubscriptionChanged) isEvent()      {}
func (SubscriptionDeleted) isEvent()      {}
func (InvoicePaymentSucceeded) isEvent()  {}
func (InvoicePaymentFailed) isEvent()     {}
func (PaymentIntentSucceeded) isEvent()   {}
func (PaymentIntentFailed) isEvent()      {}
func (PaymentIntentCanceled) isEvent()    {}
func (UnknownEvent) isEvent()             {}

// expandableID decodes a gateway reference that is either an id string or an
// expanded object carrying an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*e = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

type stripeCheckoutSession struct {
	ID              string       `json:"id"`
	Customer        expandableID `json:"customer"`
	Subscription    expandableID `json:"subscription"`
	CustomerEmail   string       `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID               string            `json:"id"`
	Customer         expandableID      `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	CanceledAt       int64             `json:"canceled_at"`
	EndedAt          int64             `json:"ended_at"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoice struct {
	ID                  string       `json:"id"`
	Customer            expandableID `json:"customer"`
	Subscription        expandableID `json:"subscription"`
	AmountPaid          int64        `json:"amount_paid"`
	Created             int64        `json:"created"`
	SubscriptionDetails struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

type stripePaymentIntent struct {
	ID                 string            `json:"id"`
	Metadata           map[string]string `json:"metadata"`
	CancellationReason string            `json:"cancellation_reason"`
	LastPaymentError   *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ParseEvent decodes the data object of a verified event into its variant.
// Unknown types yield UnknownEvent without looking at raw.
func ParseEvent(eventType string, raw json.RawMessage) (Event, error) {
	switch eventType {
	case TypeCheckoutSessionCompleted:
		var s stripeCheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		email := s.CustomerEmail
		if email == "" {
			email = s.CustomerDetails.Email
		}
		return CheckoutSessionCompleted{
			SessionID:      s.ID,
			CustomerID:     string(s.Customer),
			SubscriptionID: string(s.Subscription),
			CustomerEmail:  email,
			Metadata:       s.Metadata,
		}, nil
	case TypeSubscriptionCreated, TypeSubscriptionUpdated:
		var s stripeSubscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out := SubscriptionChanged{
			Created:          eventType == TypeSubscriptionCreated,
			SubscriptionID:   s.ID,
			CustomerID:       string(s.Customer),
			Status:           s.Status,
			CurrentPeriodEnd: unixTime(s.CurrentPeriodEnd),
			Metadata:         s.Metadata,
		}
		for _, item := range s.Items.Data {
			if item.Price.ID != "" {
				out.PriceIDs = append(out.PriceIDs, item.Price.ID)
			}
		}
		return out, nil
	case TypeSubscriptionDeleted:
		var s stripeSubscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		canceled := s.CanceledAt
		if canceled == 0 {
			canceled = s.EndedAt
		}
		return SubscriptionDeleted{
			SubscriptionID: s.ID,
			CustomerID:     string(s.Customer),
			CanceledAt:     unixTime(canceled),
			Metadata:       s.Metadata,
		}, nil
	case TypeInvoicePaymentSucceeded:
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		paid := inv.StatusTransitions.PaidAt
		if paid == 0 {
			paid = inv.Created
		}
		return InvoicePaymentSucceeded{
			InvoiceID:      inv.ID,
			CustomerID:     string(inv.Customer),
			SubscriptionID: string(inv.Subscription),
			AmountPaid:     inv.AmountPaid,
			PaidAt:         unixTime(paid),
			Metadata:       inv.SubscriptionDetails.Metadata,
		}, nil
	case TypeInvoicePaymentFailed:
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		return InvoicePaymentFailed{
			InvoiceID:      inv.ID,
			CustomerID:     string(inv.Customer),
			SubscriptionID: string(inv.Subscription),
			Metadata:       inv.SubscriptionDetails.Metadata,
		}, nil
	case TypePaymentIntentSucceeded:
		var pi stripePaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		return PaymentIntentSucceeded{PaymentIntentID: pi.ID, Metadata: pi.Metadata}, nil
	case TypePaymentIntentFailed:
		var pi stripePaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		out := PaymentIntentFailed{PaymentIntentID: pi.ID, Metadata: pi.Metadata}
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Message
		}
		return out, nil
	case TypePaymentIntentCanceled:
		var pi stripePaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		return PaymentIntentCanceled{PaymentIntentID: pi.ID, Metadata: pi.Metadata, CancellationReason: pi.CancellationReason}, nil
	default:
		return UnknownEvent{Type: eventType}, nil
	}
}
