package payment

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/app/repository/repositorytest"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/types"
)

var errGatewayDown = errors.New("gateway unavailable")

type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	intents     map[string]*stripe_client.PaymentIntent
	refunds     []string
	failRefund  map[string]error
	failIntent  error
	canceled    []string
	customers   []string
	checkouts   []stripe_client.CreateCheckoutSessionParams
	portalCalls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*stripe_client.PaymentIntent{}, failRefund: map[string]error{}}
}

func (g *fakeGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("cus")
	g.customers = append(g.customers, id)
	return id, nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, p stripe_client.CreatePaymentIntentParams) (*stripe_client.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failIntent != nil {
		return nil, g.failIntent
	}
	id := g.next("pi")
	pi := &stripe_client.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       p.Amount,
		Currency:     p.Currency,
		CustomerID:   p.CustomerID,
		Metadata:     maps.Clone(p.Metadata),
	}
	g.intents[id] = pi
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (*stripe_client.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent %s", id)
	}
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) CancelPaymentIntent(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = append(g.canceled, id)
	if pi, ok := g.intents[id]; ok {
		pi.Status = "canceled"
	}
	return nil
}

func (g *fakeGateway) CreateRefund(ctx context.Context, paymentIntentID, reason, idempotencyKey string) (*stripe_client.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failRefund[paymentIntentID]; err != nil {
		return nil, err
	}
	g.refunds = append(g.refunds, paymentIntentID)
	return &stripe_client.Refund{ID: g.next("re"), Status: "succeeded"}, nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, p stripe_client.CreateCheckoutSessionParams) (*stripe_client.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, p)
	id := g.next("cs")
	return &stripe_client.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (g *fakeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.portalCalls = append(g.portalCalls, customerID)
	return "https://portal.test/" + customerID, nil
}

// succeed marks an intent as paid at the gateway.
func (g *fakeGateway) succeed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = "succeeded"
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

func testConfig() *config.Config {
	cfg := &config.Config{Products: []*types.Product{
		{ID: "virtual_attendance", SubjectKind: types.SubjectKindEvent, Type: types.ProductTypeOneTime, Amount: 999, Currency: "usd"},
		{ID: "virtual_attendance_vip", SubjectKind: types.SubjectKindEvent, Type: types.ProductTypeOneTime, Amount: 2499, Currency: "usd"},
		{ID: "venue_pro", SubjectKind: types.SubjectKindVenue, Type: types.ProductTypeSubscription, GatewayPriceID: "price_venue_pro", Plan: "pro", Features: []string{"analytics", "featured_listing"}},
	}}
	cfg.Stripe.SuccessURL = "https://app.test/success"
	cfg.Stripe.CancelURL = "https://app.test/cancel"
	cfg.Stripe.PortalReturnURL = "https://app.test/billing"
	return cfg
}

type fixture struct {
	svc  *Service
	repo *repositorytest.Memory
	gw   *fakeGateway
}

func newFixture() *fixture {
	repo := repositorytest.NewMemory()
	gw := newFakeGateway()
	repo.PutSubject(&models.Subject{
		ID:                      "wp-1",
		Kind:                    types.SubjectKindEvent,
		OwnerID:                 "host",
		Name:                    "Derby watch party",
		Plan:                    types.PlanFree,
		AllowsVirtualAttendance: true,
	})
	repo.PutSubject(&models.Subject{ID: "venue-1", Kind: types.SubjectKindVenue, OwnerID: "venue-owner", Plan: types.PlanFree})
	return &fixture{
		svc:  New(testConfig(), repo, gw, zap.NewNop().Sugar()),
		repo: repo,
		gw:   gw,
	}
}

func caller(id string) *types.Caller {
	return &types.Caller{UserID: id, Email: id + "@example.com"}
}

var errDuplicateForTest = fmt.Errorf("%w: injected", repository.ErrDuplicate)

func stripeParamsFor(subjectID, userID string) stripe_client.CreatePaymentIntentParams {
	return stripe_client.CreatePaymentIntentParams{
		Amount:   999,
		Currency: "usd",
		Metadata: map[string]string{types.MetadataSubjectID: subjectID, types.MetadataUserID: userID},
	}
}
