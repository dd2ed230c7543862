package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/types"
)

type CreateCheckoutSessionRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	PriceID   string `json:"price_id" binding:"required"`
}

type CreateCheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type CreatePortalSessionResponse struct {
	URL string `json:"url"`
}

// CreateCheckoutSession starts a subscription checkout for a subject the
// caller owns. The price must be a subscription product configured for the
// subject kind.
func (s *Service) CreateCheckoutSession(ctx context.Context, caller *types.Caller, req *CreateCheckoutSessionRequest) (*CreateCheckoutSessionResponse, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.SubjectID) == "" || strings.TrimSpace(req.PriceID) == "" {
		return nil, apperr.InvalidArgument("subject_id and price_id are required")
	}

	subject, err := s.repo.GetSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, s.fail(ctx, "get_subject", notFoundOr(err, "subject %s not found", req.SubjectID))
	}
	if !subject.IsManagedBy(caller.UserID) {
		return nil, apperr.PermissionDenied("only the subject owner can manage its subscription")
	}
	product := s.cfg.GetSubscriptionProductByPriceID(subject.Kind, req.PriceID)
	if product == nil {
		return nil, apperr.InvalidArgument("price %s is not available for %s subjects", req.PriceID, subject.Kind)
	}

	customerID, err := s.ensureCustomer(ctx, caller)
	if err != nil {
		return nil, s.fail(ctx, "ensure_customer", err)
	}

	session, err := s.gw.CreateCheckoutSession(ctx, stripe_client.CreateCheckoutSessionParams{
		PriceID:    product.GatewayPriceID,
		CustomerID: customerID,
		Email:      caller.Email,
		SuccessURL: s.cfg.Stripe.SuccessURL,
		CancelURL:  s.cfg.Stripe.CancelURL,
		Metadata: map[string]string{
			types.MetadataSubjectID: subject.ID,
			types.MetadataUserID:    caller.UserID,
			types.MetadataProductID: product.ID,
		},
	})
	if err != nil {
		return nil, s.fail(ctx, "create_checkout_session", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_session_created", "subject_id", subject.ID, "session_id", session.ID, "product_id", product.ID)
	return &CreateCheckoutSessionResponse{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession opens the billing portal for the caller's own gateway
// customer. The customer is never taken from the request.
func (s *Service) CreatePortalSession(ctx context.Context, caller *types.Caller) (*CreatePortalSessionResponse, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	mapping, err := s.repo.GetGatewayCustomer(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("no billing account for this user")
		}
		return nil, s.fail(ctx, "get_gateway_customer", err)
	}
	url, err := s.gw.CreatePortalSession(ctx, mapping.CustomerID, s.cfg.Stripe.PortalReturnURL)
	if err != nil {
		return nil, s.fail(ctx, "create_portal_session", err)
	}
	return &CreatePortalSessionResponse{URL: url}, nil
}
