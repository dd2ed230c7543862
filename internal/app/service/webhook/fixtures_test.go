package webhook

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/matchpay/internal/app/repository/repositorytest"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/types"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Products: []*types.Product{
			{ID: "virtual_attendance", SubjectKind: types.SubjectKindEvent, Type: types.ProductTypeOneTime, Amount: 999, Currency: "usd"},
			{ID: "venue_pro", SubjectKind: types.SubjectKindVenue, Type: types.ProductTypeSubscription, GatewayPriceID: "price_venue_pro", Plan: "pro", Features: []string{"analytics", "featured_listing"}},
			{ID: "venue_elite", SubjectKind: types.SubjectKindVenue, Type: types.ProductTypeSubscription, GatewayPriceID: "price_venue_elite", Plan: "elite", Features: []string{"analytics", "featured_listing", "priority_support"}},
			{ID: "fan_plus", SubjectKind: types.SubjectKindFan, Type: types.ProductTypeSubscription, GatewayPriceID: "price_fan_plus", Plan: "plus", Features: []string{"ad_free"}},
		},
	}
}

func newTestRouter() *Router {
	r := NewRouter(testConfig(), zap.NewNop().Sugar())
	r.now = func() time.Time { return fixedNow }
	return r
}

// venue returns a free venue subject linked to gateway customer cus_1.
func venue() *models.Subject {
	return &models.Subject{
		ID:       "venue-1",
		Kind:     types.SubjectKindVenue,
		OwnerID:  "venue-owner",
		Plan:     types.PlanFree,
		Features: datatypes.NewJSONType(map[string]bool{"analytics": false, "custom_badge": true}),
		Billing:  models.SubjectBilling{GatewayCustomerID: "cus_1"},
	}
}

func watchParty() *models.Subject {
	return &models.Subject{
		ID:                      "wp-1",
		Kind:                    types.SubjectKindEvent,
		OwnerID:                 "host",
		Plan:                    types.PlanFree,
		Features:                datatypes.NewJSONType(map[string]bool{}),
		AllowsVirtualAttendance: true,
	}
}

func pendingPayment(id, intentID, userID string) *models.PaymentRecord {
	return &models.PaymentRecord{
		ID:               id,
		SubjectID:        "wp-1",
		UserID:           userID,
		ProductID:        "virtual_attendance",
		GatewayPaymentID: intentID,
		Amount:           999,
		Currency:         "usd",
		Status:           types.PaymentStatusPending,
	}
}

func newStore() *repositorytest.Memory {
	m := repositorytest.NewMemory()
	m.PutSubject(venue())
	m.PutSubject(watchParty())
	return m
}
