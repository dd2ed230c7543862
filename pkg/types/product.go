package types

type ProductType string

const (
	ProductTypeOneTime      ProductType = "one_time"
	ProductTypeSubscription ProductType = "subscription"
)

// Product is a server-side catalogue entry. Prices are only ever taken from
// here or from the subject document, never from a request.
type Product struct {
	ID          string      `json:"id" mapstructure:"id"`
	SubjectKind SubjectKind `json:"subject_kind" mapstructure:"subject_kind"`
	Type        ProductType `json:"type" mapstructure:"type"`
	// Amount in minor currency units, one-time products only.
	Amount   int64  `json:"amount" mapstructure:"amount"`
	Currency string `json:"currency" mapstructure:"currency"`
	// GatewayPriceID is the recurring price id, subscription products only.
	GatewayPriceID string `json:"gateway_price_id" mapstructure:"gateway_price_id"`
	// Plan and Features describe the paid tier a subscription grants.
	Plan     string   `json:"plan" mapstructure:"plan"`
	Features []string `json:"features" mapstructure:"features"`
}

func (p *Product) IsSubscription() bool {
	return p != nil && p.Type == ProductTypeSubscription
}

func (p *Product) IsOneTime() bool {
	return p != nil && p.Type == ProductTypeOneTime
}

// PaidFeatures returns every feature of the product switched on.
func (p *Product) PaidFeatures() map[string]bool {
	out := make(map[string]bool, len(p.Features))
	for _, f := range p.Features {
		out[f] = true
	}
	return out
}

// FreeFeatures returns every feature of the product switched off.
func (p *Product) FreeFeatures() map[string]bool {
	out := make(map[string]bool, len(p.Features))
	for _, f := range p.Features {
		out[f] = false
	}
	return out
}
