package payment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/types"
)

// Gateway is the subset of the payment gateway the service calls.
type Gateway interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreatePaymentIntent(ctx context.Context, p stripe_client.CreatePaymentIntentParams) (*stripe_client.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe_client.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) error
	CreateRefund(ctx context.Context, paymentIntentID, reason, idempotencyKey string) (*stripe_client.Refund, error)
	CreateCheckoutSession(ctx context.Context, p stripe_client.CreateCheckoutSessionParams) (*stripe_client.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type Service struct {
	cfg  *config.Config
	repo repository.Repository
	gw   Gateway
	log  *zap.SugaredLogger
	now  func() time.Time
}

func New(cfg *config.Config, repo repository.Repository, gw Gateway, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, repo: repo, gw: gw, log: log, now: time.Now}
}

func requireCaller(caller *types.Caller) error {
	if caller == nil || caller.UserID == "" {
		return apperr.Unauthenticated("authentication required")
	}
	return nil
}

// fail returns taxonomy errors unchanged and hides anything else behind
// Internal, logging the cause.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	e := apperr.Normalize(err)
	if e.Code == apperr.CodeInternal {
		logctx.FromCtx(ctx, s.log).Errorw(op+"_failed", "err", err)
	}
	return e
}

// notFoundOr maps repository.ErrNotFound to a NotFound error with msg.
func notFoundOr(err error, msg string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msg, args...)
	}
	return err
}

// ensureCustomer returns the caller's gateway customer, creating it and the
// mapping on first use.
func (s *Service) ensureCustomer(ctx context.Context, caller *types.Caller) (string, error) {
	c, err := s.repo.GetGatewayCustomer(ctx, caller.UserID)
	if err == nil {
		return c.CustomerID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	customerID, err := s.gw.CreateCustomer(ctx, caller.Email, map[string]string{types.MetadataUserID: caller.UserID})
	if err != nil {
		return "", err
	}
	mapping := &models.GatewayCustomer{UserID: caller.UserID, CustomerID: customerID, Email: caller.Email}
	if err := s.repo.SaveGatewayCustomer(ctx, mapping); err != nil {
		return "", err
	}
	return customerID, nil
}

// recordTransition appends a payment log entry inside tx.
func recordTransition(ctx context.Context, tx repository.Repository, before, after *models.PaymentRecord, reason types.PaymentChangeReason, extra map[string]any) error {
	l := &models.PaymentLog{
		PaymentID: after.ID,
		SubjectID: after.SubjectID,
		UserID:    after.UserID,
		Reason:    reason,
		Before:    datatypes.NewJSONType(before),
		After:     datatypes.NewJSONType(after),
		Extra:     datatypes.JSONMap(extra),
		CreatedAt: time.Now(),
	}
	return tx.CreatePaymentLog(ctx, l)
}

// ApplyCompletion turns a pending record into a completed one with its
// domain effects: membership paid and one more virtual attendee. It must run
// inside tx with rec read from tx.
func ApplyCompletion(ctx context.Context, tx repository.Repository, rec *models.PaymentRecord, at time.Time, reason types.PaymentChangeReason, extra map[string]any) error {
	before := *rec
	rec.Status = types.PaymentStatusCompleted
	rec.CompletedAt = &at
	if err := tx.UpdatePayment(ctx, rec); err != nil {
		return err
	}
	if err := tx.MarkMemberPaid(ctx, rec.SubjectID, rec.UserID, at); err != nil {
		return err
	}
	if err := tx.AddVirtualAttendees(ctx, rec.SubjectID, 1); err != nil {
		return err
	}
	return recordTransition(ctx, tx, &before, rec, reason, extra)
}

// RecordFailedAttempt notes a declined attempt on a pending record. The
// record stays pending: the intent can still be paid with another method.
func RecordFailedAttempt(ctx context.Context, tx repository.Repository, rec *models.PaymentRecord, failure string, extra map[string]any) error {
	if failure == "" {
		failure = "payment attempt failed"
	}
	before := *rec
	rec.FailureReason = &failure
	if err := tx.UpdatePayment(ctx, rec); err != nil {
		return err
	}
	return recordTransition(ctx, tx, &before, rec, types.PaymentChangeReasonAttemptFailed, extra)
}

// ApplyFailure marks a pending record failed once its intent can no longer
// be paid, so the pair may purchase again.
func ApplyFailure(ctx context.Context, tx repository.Repository, rec *models.PaymentRecord, failure string, extra map[string]any) error {
	before := *rec
	rec.Status = types.PaymentStatusFailed
	if failure != "" {
		rec.FailureReason = &failure
	}
	if err := tx.UpdatePayment(ctx, rec); err != nil {
		return err
	}
	return recordTransition(ctx, tx, &before, rec, types.PaymentChangeReasonFailed, extra)
}
