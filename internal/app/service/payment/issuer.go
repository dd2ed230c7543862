package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/metrics"
	"github.com/fatflowers/matchpay/pkg/tool"
	"github.com/fatflowers/matchpay/pkg/types"
)

// CreatePaymentIntentRequest carries no amount: the price is resolved on the
// server from the subject or the product catalogue.
type CreatePaymentIntentRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	ProductID string `json:"product_id,omitempty"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	PaymentID       string `json:"payment_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type price struct {
	amount    int64
	currency  string
	productID string
}

// resolvePrice prefers the subject's own ticket price and falls back to the
// one-time product configured for the subject kind.
func (s *Service) resolvePrice(subject *models.Subject, productID string) (*price, error) {
	var product *types.Product
	if productID != "" {
		p, err := s.cfg.GetOneTimeProduct(subject.Kind, productID)
		if err != nil {
			return nil, apperr.InvalidArgument("%s", err.Error())
		}
		product = p
	}

	if subject.TicketPrice != nil && *subject.TicketPrice > 0 {
		out := &price{amount: *subject.TicketPrice, currency: strings.ToLower(subject.TicketCurrency)}
		if product != nil {
			out.productID = product.ID
			if out.currency == "" {
				out.currency = strings.ToLower(product.Currency)
			}
		}
		if out.currency == "" {
			return nil, apperr.FailedPrecondition("subject %s has a ticket price without currency", subject.ID)
		}
		return out, nil
	}

	if product == nil {
		p, err := s.cfg.GetOneTimeProduct(subject.Kind, "")
		if err != nil {
			return nil, apperr.FailedPrecondition("no price available for subject %s", subject.ID)
		}
		product = p
	}
	return &price{amount: product.Amount, currency: strings.ToLower(product.Currency), productID: product.ID}, nil
}

// CreatePaymentIntent issues a gateway payment intent for the caller and the
// subject, refusing while the pair already has a pending or completed record.
func (s *Service) CreatePaymentIntent(ctx context.Context, caller *types.Caller, req *CreatePaymentIntentRequest) (resp *CreatePaymentIntentResponse, err error) {
	start := time.Now()
	defer func() {
		metrics.ObservePaymentIntent(string(resultOf(err)))
		metrics.ObserveProcess("payment", "create_intent", start)
	}()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.SubjectID) == "" {
		return nil, apperr.InvalidArgument("subject_id is required")
	}
	log := logctx.FromCtx(ctx, s.log).With("subject_id", req.SubjectID)

	subject, err := s.repo.GetSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, s.fail(ctx, "get_subject", notFoundOr(err, "subject %s not found", req.SubjectID))
	}
	if !subject.AllowsVirtualAttendance {
		return nil, apperr.FailedPrecondition("subject %s does not accept this purchase", subject.ID)
	}
	pr, err := s.resolvePrice(subject, req.ProductID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, caller)
	if err != nil {
		return nil, s.fail(ctx, "ensure_customer", err)
	}

	rec := &models.PaymentRecord{
		ID:        tool.GenerateUUIDV7(),
		SubjectID: subject.ID,
		UserID:    caller.UserID,
		ProductID: pr.productID,
		Amount:    pr.amount,
		Currency:  pr.currency,
		Status:    types.PaymentStatusPending,
	}

	var intent *stripe_client.PaymentIntent
	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		active, err := tx.FindActivePayment(ctx, subject.ID, caller.UserID)
		if err == nil {
			return apperr.AlreadyExists("a %s payment already exists for this subject", active.Status)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		intent, err = s.gw.CreatePaymentIntent(ctx, stripe_client.CreatePaymentIntentParams{
			Amount:     pr.amount,
			Currency:   pr.currency,
			CustomerID: customerID,
			Metadata: map[string]string{
				types.MetadataSubjectID: subject.ID,
				types.MetadataUserID:    caller.UserID,
				types.MetadataProductID: pr.productID,
				types.MetadataPaymentID: rec.ID,
			},
			IdempotencyKey: tool.IdempotencyKey("payment_intent", rec.ID),
		})
		if err != nil {
			return err
		}

		rec.GatewayPaymentID = intent.ID
		if err := tx.CreatePayment(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.AlreadyExists("a payment already exists for this subject")
			}
			return err
		}
		return recordTransition(ctx, tx, nil, rec, types.PaymentChangeReasonIssued, nil)
	})
	if err != nil {
		if intent != nil {
			s.cancelOrphan(ctx, intent.ID)
		}
		return nil, s.fail(ctx, "create_payment_intent", err)
	}

	log.Infow("payment_intent_created", "payment_id", rec.ID, "payment_intent_id", intent.ID, "amount", rec.Amount, "currency", rec.Currency)
	return &CreatePaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentID:       rec.ID,
		Amount:          rec.Amount,
		Currency:        rec.Currency,
	}, nil
}

// cancelOrphan cancels an intent whose record was never committed.
func (s *Service) cancelOrphan(ctx context.Context, intentID string) {
	if err := s.gw.CancelPaymentIntent(context.WithoutCancel(ctx), intentID); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("cancel_orphan_intent_failed", "payment_intent_id", intentID, "err", err)
	}
}

func resultOf(err error) apperr.Code {
	if err == nil {
		return "ok"
	}
	return apperr.CodeOf(err)
}
