package payment

import (
	"context"
	"strings"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/types"
)

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	SubjectID       string `json:"subject_id" binding:"required"`
}

type ConfirmPaymentResponse struct {
	Success bool `json:"success"`
}

// ConfirmPayment checks with the gateway that the caller's payment intent
// succeeded and applies its effects once. A record that is already completed
// is left as is, so retries and a racing webhook are harmless.
func (s *Service) ConfirmPayment(ctx context.Context, caller *types.Caller, req *ConfirmPaymentRequest) (*ConfirmPaymentResponse, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.PaymentIntentID) == "" || strings.TrimSpace(req.SubjectID) == "" {
		return nil, apperr.InvalidArgument("payment_intent_id and subject_id are required")
	}
	log := logctx.FromCtx(ctx, s.log).With("payment_intent_id", req.PaymentIntentID, "subject_id", req.SubjectID)

	intent, err := s.gw.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, s.fail(ctx, "get_payment_intent", err)
	}
	if !intent.Succeeded() {
		return nil, apperr.FailedPrecondition("payment has not succeeded (status %s)", intent.Status)
	}
	if intent.Metadata[types.MetadataSubjectID] != req.SubjectID || intent.Metadata[types.MetadataUserID] != caller.UserID {
		log.Warnw("confirm_metadata_mismatch", "meta_subject_id", intent.Metadata[types.MetadataSubjectID])
		return nil, apperr.PermissionDenied("payment does not belong to this subject and user")
	}

	applied := false
	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		rec, err := tx.GetPaymentByGatewayID(ctx, req.PaymentIntentID)
		if err != nil {
			return notFoundOr(err, "payment %s not found", req.PaymentIntentID)
		}
		if rec.SubjectID != req.SubjectID || rec.UserID != caller.UserID {
			return apperr.PermissionDenied("payment does not belong to this subject and user")
		}
		switch rec.Status {
		case types.PaymentStatusCompleted:
			return nil
		case types.PaymentStatusPending:
		default:
			return apperr.FailedPrecondition("payment is %s and cannot be confirmed", rec.Status)
		}
		applied = true
		return ApplyCompletion(ctx, tx, rec, s.now(), types.PaymentChangeReasonConfirmed, map[string]any{"source": "confirm"})
	})
	if err != nil {
		return nil, s.fail(ctx, "confirm_payment", err)
	}

	if applied {
		log.Infow("payment_confirmed")
	} else {
		log.Infow("payment_already_completed")
	}
	return &ConfirmPaymentResponse{Success: true}, nil
}
