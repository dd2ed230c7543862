package stripe_client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")
	ErrInvalidSignature     = errors.New("invalid stripe signature")
)

// Event is a verified gateway notification. Raw holds the event's data.object.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Raw     json.RawMessage
}

// ConstructEvent verifies the signature header over payload and decodes the
// envelope. The event's API version is not checked against the library's.
func (c *Client) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0),
	}
	if evt.Data != nil {
		out.Raw = evt.Data.Raw
	}
	return out, nil
}
