package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/metrics"
	"github.com/fatflowers/matchpay/pkg/tool"
	"github.com/fatflowers/matchpay/pkg/types"
)

type RefundPaymentRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	// UserID defaults to the caller.
	UserID string `json:"user_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RefundPaymentResponse struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refund_id,omitempty"`
	Message  string `json:"message"`
}

type RefundAllRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	Reason    string `json:"reason,omitempty"`
}

// RefundAllResponse reports Success once the run finished. Per payment
// failures are listed in Errors.
type RefundAllResponse struct {
	Success       bool     `json:"success"`
	RefundedCount int      `json:"refunded_count"`
	Errors        []string `json:"errors,omitempty"`
}

const (
	refundModeSingle = "single"
	refundModeBulk   = "bulk"
)

// RefundPayment refunds the target user's completed payment for a subject.
// Only the subject owner or the target user may call it. A payment that was
// already refunded is not found, so a repeated call never refunds twice.
func (s *Service) RefundPayment(ctx context.Context, caller *types.Caller, req *RefundPaymentRequest) (*RefundPaymentResponse, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.SubjectID) == "" {
		return nil, apperr.InvalidArgument("subject_id is required")
	}
	target := req.UserID
	if target == "" {
		target = caller.UserID
	}

	subject, err := s.repo.GetSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, s.fail(ctx, "get_subject", notFoundOr(err, "subject %s not found", req.SubjectID))
	}
	if !subject.IsManagedBy(caller.UserID) && target != caller.UserID {
		return nil, apperr.PermissionDenied("only the subject owner or the payer can refund")
	}

	rec, err := s.repo.FindCompletedPayment(ctx, subject.ID, target)
	if err != nil {
		return nil, s.fail(ctx, "find_completed_payment", notFoundOr(err, "no completed payment to refund"))
	}

	refundID, err := s.refundOne(ctx, rec, reasonOrDefault(req.Reason), true)
	if err != nil {
		metrics.ObserveRefund(refundModeSingle, "failed")
		return nil, s.fail(ctx, "refund_payment", err)
	}
	metrics.ObserveRefund(refundModeSingle, "ok")
	return &RefundPaymentResponse{Success: true, RefundID: refundID, Message: "refund processed"}, nil
}

// RefundAll refunds every completed payment of a subject one at a time. A
// failed item is reported and the run goes on. The attendee count is reset
// to zero at the end whatever the outcomes.
func (s *Service) RefundAll(ctx context.Context, caller *types.Caller, req *RefundAllRequest) (*RefundAllResponse, error) {
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
	if !subject.IsManagedBy(caller.UserID) {
		return nil, apperr.PermissionDenied("only the subject owner can refund all payments")
	}

	records, err := s.repo.ListCompletedPayments(ctx, subject.ID)
	if err != nil {
		return nil, s.fail(ctx, "list_completed_payments", err)
	}
	if len(records) == 0 {
		return &RefundAllResponse{Success: true}, nil
	}

	resp := &RefundAllResponse{Success: true}
	reason := reasonOrDefault(req.Reason)
	for _, rec := range records {
		if _, err := s.refundOne(ctx, rec, reason, false); err != nil {
			metrics.ObserveRefund(refundModeBulk, "failed")
			log.Errorw("refund_item_failed", "payment_id", rec.ID, "user_id", rec.UserID, "err", err)
			resp.Errors = append(resp.Errors, fmt.Sprintf("payment %s (user %s): %s", rec.ID, rec.UserID, itemMessage(err)))
			continue
		}
		metrics.ObserveRefund(refundModeBulk, "ok")
		resp.RefundedCount++
	}

	if err := s.repo.SetVirtualAttendees(ctx, subject.ID, 0); err != nil {
		log.Errorw("reset_attendees_failed", "err", err)
		resp.Errors = append(resp.Errors, fmt.Sprintf("subject %s: failed to reset attendee count", subject.ID))
	}
	log.Infow("refund_all_finished", "refunded", resp.RefundedCount, "failed", len(resp.Errors))
	return resp, nil
}

func reasonOrDefault(reason string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return types.DefaultRefundReason
}

// itemMessage is the caller-safe text of a per payment failure.
func itemMessage(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Message
	}
	return apperr.InternalMessage
}

// refundOne calls the gateway and then writes the refunded state in one
// transaction. Nothing is written when the gateway call fails. With
// decrement set the subject loses one virtual attendee.
func (s *Service) refundOne(ctx context.Context, rec *models.PaymentRecord, reason string, decrement bool) (string, error) {
	log := logctx.FromCtx(ctx, s.log).With("payment_id", rec.ID, "user_id", rec.UserID)

	refund, err := s.gw.CreateRefund(ctx, rec.GatewayPaymentID, reason, tool.IdempotencyKey("refund", rec.ID))
	if err != nil {
		return "", &apperr.Error{Code: apperr.CodeInternal, Message: "gateway refund failed", Err: err}
	}

	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		cur, err := tx.GetPayment(ctx, rec.ID)
		if err != nil {
			return err
		}
		if cur.Status == types.PaymentStatusRefunded {
			// a concurrent refund of the same payment got here first
			return nil
		}
		before := *cur
		now := s.now()
		cur.Status = types.PaymentStatusRefunded
		cur.RefundID = &refund.ID
		cur.RefundedAt = &now
		cur.RefundReason = &reason
		if err := tx.UpdatePayment(ctx, cur); err != nil {
			return err
		}
		if err := tx.MarkMemberRefunded(ctx, cur.SubjectID, cur.UserID, now); err != nil {
			return err
		}
		if decrement {
			if err := tx.AddVirtualAttendees(ctx, cur.SubjectID, -1); err != nil {
				return err
			}
		}
		return recordTransition(ctx, tx, &before, cur, types.PaymentChangeReasonRefund, map[string]any{"refund_id": refund.ID})
	})
	if err != nil {
		log.Errorw("refund_state_write_failed", "refund_id", refund.ID, "err", err)
		return "", &apperr.Error{Code: apperr.CodeInternal, Message: "refund issued but recording it failed", Err: err}
	}

	log.Infow("payment_refunded", "refund_id", refund.ID)
	return refund.ID, nil
}
