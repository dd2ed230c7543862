package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/app/service/payment"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/types"
)

// Result says what a reconciler did with an event.
type Result string

const (
	// ResultApplied means state was written.
	ResultApplied Result = "applied"
	// ResultIgnored means the event referenced nothing we know about.
	ResultIgnored Result = "ignored"
	// ResultNoop means state already reflected the event.
	ResultNoop Result = "noop"
)

// Router dispatches parsed events to their reconcilers.
type Router struct {
	cfg *config.Config
	log *zap.SugaredLogger
	now func() time.Time
}

func NewRouter(cfg *config.Config, log *zap.SugaredLogger) *Router {
	return &Router{cfg: cfg, log: log, now: time.Now}
}

// Dispatch applies evt through tx. Every variant has exactly one branch.
func (r *Router) Dispatch(ctx context.Context, tx repository.Repository, evt Event) (Result, error) {
	switch e := evt.(type) {
	case CheckoutSessionCompleted:
		return r.checkoutCompleted(ctx, tx, e)
	case SubscriptionChanged:
		return r.subscriptionChanged(ctx, tx, e)
	case SubscriptionDeleted:
		return r.subscriptionDeleted(ctx, tx, e)
	case InvoicePaymentSucceeded:
		return r.invoiceSucceeded(ctx, tx, e)
	case InvoicePaymentFailed:
		return r.invoiceFailed(ctx, tx, e)
	case PaymentIntentSucceeded:
		return r.paymentIntentSucceeded(ctx, tx, e)
	case PaymentIntentFailed:
		return r.paymentIntentFailed(ctx, tx, e)
	case PaymentIntentCanceled:
		return r.paymentIntentCanceled(ctx, tx, e)
	case UnknownEvent:
		logctx.FromCtx(ctx, r.log).Infow("webhook_event_unhandled", "type", e.Type)
		return ResultIgnored, nil
	default:
		return "", fmt.Errorf("unhandled event variant %T", evt)
	}
}

// subjectOrIgnore loads a subject, turning a missing one into a nil subject.
func (r *Router) subjectOrIgnore(ctx context.Context, s *models.Subject, err error, msg string, kv ...any) (*models.Subject, error) {
	if errors.Is(err, repository.ErrNotFound) {
		logctx.FromCtx(ctx, r.log).Warnw(msg, kv...)
		return nil, nil
	}
	return s, err
}

// subscriptionProduct picks the configured product for one of priceIDs,
// falling back to the kind's default subscription.
func (r *Router) subscriptionProduct(kind types.SubjectKind, priceIDs ...string) *types.Product {
	for _, id := range priceIDs {
		if id == "" {
			continue
		}
		if p := r.cfg.GetSubscriptionProductByPriceID(kind, id); p != nil {
			return p
		}
	}
	return r.cfg.GetSubscriptionProduct(kind)
}

func applyPaidTier(s *models.Subject, p *types.Product) {
	features := s.FeatureMap()
	for k, v := range p.PaidFeatures() {
		features[k] = v
	}
	s.Plan = p.Plan
	s.Features = datatypes.NewJSONType(features)
}

// applyFreeTier drops s to the free plan with the paid features of p off.
// Without a product every known flag is switched off.
func applyFreeTier(s *models.Subject, p *types.Product) {
	features := s.FeatureMap()
	if p != nil {
		for k, v := range p.FreeFeatures() {
			features[k] = v
		}
	} else {
		for k := range features {
			features[k] = false
		}
	}
	s.Plan = types.PlanFree
	s.Features = datatypes.NewJSONType(features)
}

func (r *Router) checkoutCompleted(ctx context.Context, tx repository.Repository, e CheckoutSessionCompleted) (Result, error) {
	log := logctx.FromCtx(ctx, r.log)
	subjectID := e.Metadata[types.MetadataSubjectID]
	userID := e.Metadata[types.MetadataUserID]
	if subjectID == "" || userID == "" {
		log.Warnw("webhook_checkout_missing_metadata", "session", e.SessionID)
		return ResultIgnored, nil
	}

	s, err := tx.GetSubject(ctx, subjectID)
	s, err = r.subjectOrIgnore(ctx, s, err, "webhook_checkout_subject_missing", "subject_id", subjectID)
	if err != nil || s == nil {
		return ResultIgnored, err
	}

	var product *types.Product
	if id := e.Metadata[types.MetadataProductID]; id != "" {
		if p := r.cfg.GetProductByID(id); p.IsSubscription() && p.SubjectKind == s.Kind {
			product = p
		}
	}
	if product == nil {
		product = r.cfg.GetSubscriptionProduct(s.Kind)
	}
	if product != nil {
		applyPaidTier(s, product)
	} else {
		log.Warnw("webhook_checkout_no_product", "subject_id", s.ID, "kind", s.Kind)
	}
	s.Billing.Status = types.BillingStatusActive
	s.Billing.CanceledAt = nil
	if e.CustomerID != "" {
		s.Billing.GatewayCustomerID = e.CustomerID
	}
	if e.SubscriptionID != "" {
		s.Billing.GatewaySubscriptionID = e.SubscriptionID
	}
	if err := tx.UpdateSubjectBilling(ctx, s); err != nil {
		return "", err
	}

	if e.CustomerID != "" {
		_, err := tx.GetGatewayCustomer(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c := &models.GatewayCustomer{UserID: userID, CustomerID: e.CustomerID, Email: e.CustomerEmail}
			if err := tx.SaveGatewayCustomer(ctx, c); err != nil {
				return "", err
			}
		case err != nil:
			return "", err
		}
	}
	return ResultApplied, nil
}

// billingSubject finds the subject a subscription or invoice event is about.
// The subject id in the subscription metadata wins, then the stored
// subscription id. The customer id is only used when it names exactly one
// candidate, since one customer can pay for several subjects.
func (r *Router) billingSubject(ctx context.Context, tx repository.Repository, md map[string]string, subscriptionID, customerID string) (*models.Subject, error) {
	if id := md[types.MetadataSubjectID]; id != "" {
		s, err := tx.GetSubject(ctx, id)
		if !errors.Is(err, repository.ErrNotFound) {
			return s, err
		}
	}
	if subscriptionID != "" {
		s, err := tx.FindSubjectBySubscriptionID(ctx, subscriptionID)
		if !errors.Is(err, repository.ErrNotFound) {
			return s, err
		}
	}

	list, err := tx.ListSubjectsByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	var candidates []*models.Subject
	for _, s := range list {
		if subscriptionID == "" || s.Billing.GatewaySubscriptionID == "" || s.Billing.GatewaySubscriptionID == subscriptionID {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) != 1 {
		if len(candidates) > 1 {
			logctx.FromCtx(ctx, r.log).Warnw("webhook_customer_ambiguous", "customer", customerID, "subscription", subscriptionID, "subjects", len(candidates))
		}
		return nil, repository.ErrNotFound
	}
	return candidates[0], nil
}

func (r *Router) subscriptionChanged(ctx context.Context, tx repository.Repository, e SubscriptionChanged) (Result, error) {
	s, err := r.billingSubject(ctx, tx, e.Metadata, e.SubscriptionID, e.CustomerID)
	s, err = r.subjectOrIgnore(ctx, s, err, "webhook_subscription_subject_missing", "customer", e.CustomerID, "subscription", e.SubscriptionID)
	if err != nil || s == nil {
		return ResultIgnored, err
	}

	product := r.subscriptionProduct(s.Kind, e.PriceIDs...)
	if e.Status == string(types.BillingStatusActive) && product != nil {
		applyPaidTier(s, product)
	} else {
		applyFreeTier(s, product)
	}
	s.Billing.Status = types.BillingStatus(e.Status)
	s.Billing.GatewaySubscriptionID = e.SubscriptionID
	if e.CustomerID != "" {
		s.Billing.GatewayCustomerID = e.CustomerID
	}
	if !e.CurrentPeriodEnd.IsZero() {
		end := e.CurrentPeriodEnd
		s.Billing.CurrentPeriodEnd = &end
	}
	if err := tx.UpdateSubjectBilling(ctx, s); err != nil {
		return "", err
	}
	return ResultApplied, nil
}

func (r *Router) subscriptionDeleted(ctx context.Context, tx repository.Repository, e SubscriptionDeleted) (Result, error) {
	s, err := r.billingSubject(ctx, tx, e.Metadata, e.SubscriptionID, e.CustomerID)
	s, err = r.subjectOrIgnore(ctx, s, err, "webhook_subscription_subject_missing", "customer", e.CustomerID, "subscription", e.SubscriptionID)
	if err != nil || s == nil {
		return ResultIgnored, err
	}

	applyFreeTier(s, r.subscriptionProduct(s.Kind))
	canceled := e.CanceledAt
	if canceled.IsZero() {
		canceled = r.now()
	}
	s.Billing.Status = types.BillingStatusCanceled
	s.Billing.CanceledAt = &canceled
	if err := tx.UpdateSubjectBilling(ctx, s); err != nil {
		return "", err
	}
	return ResultApplied, nil
}

func (r *Router) invoiceSucceeded(ctx context.Context, tx repository.Repository, e InvoicePaymentSucceeded) (Result, error) {
	s, err := r.billingSubject(ctx, tx, e.Metadata, e.SubscriptionID, e.CustomerID)
	s, err = r.subjectOrIgnore(ctx, s, err, "webhook_invoice_subject_missing", "customer", e.CustomerID, "invoice", e.InvoiceID)
	if err != nil || s == nil {
		return ResultIgnored, err
	}

	paidAt := e.PaidAt
	if paidAt.IsZero() {
		paidAt = r.now()
	}
	amount := e.AmountPaid
	s.Billing.LastPaymentAt = &paidAt
	s.Billing.LastPaymentAmount = &amount
	if err := tx.UpdateSubjectBilling(ctx, s); err != nil {
		return "", err
	}
	return ResultApplied, nil
}

func (r *Router) invoiceFailed(ctx context.Context, tx repository.Repository, e InvoicePaymentFailed) (Result, error) {
	s, err := r.billingSubject(ctx, tx, e.Metadata, e.SubscriptionID, e.CustomerID)
	s, err = r.subjectOrIgnore(ctx, s, err, "webhook_invoice_subject_missing", "customer", e.CustomerID, "invoice", e.InvoiceID)
	if err != nil || s == nil {
		return ResultIgnored, err
	}

	s.Billing.PaymentStatus = types.BillingPaymentFailed
	if err := tx.UpdateSubjectBilling(ctx, s); err != nil {
		return "", err
	}
	return ResultApplied, nil
}

// pendingPayment returns the record of a gateway intent when it is still
// pending, or a result explaining why there is nothing to do.
func (r *Router) pendingPayment(ctx context.Context, tx repository.Repository, intentID string, md map[string]string) (*models.PaymentRecord, Result, error) {
	log := logctx.FromCtx(ctx, r.log)
	rec, err := tx.GetPaymentByGatewayID(ctx, intentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Infow("webhook_payment_intent_unknown", "payment_intent", intentID)
		return nil, ResultIgnored, nil
	}
	if err != nil {
		return nil, "", err
	}
	sid, uid := md[types.MetadataSubjectID], md[types.MetadataUserID]
	if (sid != "" && sid != rec.SubjectID) || (uid != "" && uid != rec.UserID) {
		log.Warnw("webhook_payment_intent_metadata_mismatch", "payment_intent", intentID, "payment_id", rec.ID)
		return nil, ResultIgnored, nil
	}
	if rec.Status != types.PaymentStatusPending {
		return nil, ResultNoop, nil
	}
	return rec, "", nil
}

func (r *Router) paymentIntentSucceeded(ctx context.Context, tx repository.Repository, e PaymentIntentSucceeded) (Result, error) {
	rec, res, err := r.pendingPayment(ctx, tx, e.PaymentIntentID, e.Metadata)
	if rec == nil {
		return res, err
	}
	extra := map[string]any{"payment_intent": e.PaymentIntentID}
	if err := payment.ApplyCompletion(ctx, tx, rec, r.now(), types.PaymentChangeReasonWebhook, extra); err != nil {
		return "", err
	}
	return ResultApplied, nil
}

// paymentIntentFailed only notes the declined attempt. The record stays
// pending and keeps blocking a second purchase while the intent is payable.
func (r *Router) paymentIntentFailed(ctx context.Context, tx repository.Repository, e PaymentIntentFailed) (Result, error) {
	rec, res, err := r.pendingPayment(ctx, tx, e.PaymentIntentID, e.Metadata)
	if rec == nil {
		return res, err
	}
	extra := map[string]any{"payment_intent": e.PaymentIntentID}
	if err := payment.RecordFailedAttempt(ctx, tx, rec, e.FailureMessage, extra); err != nil {
		return "", err
	}
	return ResultApplied, nil
}

func (r *Router) paymentIntentCanceled(ctx context.Context, tx repository.Repository, e PaymentIntentCanceled) (Result, error) {
	rec, res, err := r.pendingPayment(ctx, tx, e.PaymentIntentID, e.Metadata)
	if rec == nil {
		return res, err
	}
	reason := "payment intent canceled"
	if e.CancellationReason != "" {
		reason += ": " + e.CancellationReason
	}
	if rec.FailureReason != nil && *rec.FailureReason != "" {
		reason += " (last attempt: " + *rec.FailureReason + ")"
	}
	extra := map[string]any{"payment_intent": e.PaymentIntentID}
	if err := payment.ApplyFailure(ctx, tx, rec, reason, extra); err != nil {
		return "", err
	}
	return ResultApplied, nil
}
