package statistics

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/types"
)

type PaymentSummaryRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
}

type PaymentSummaryResponse struct {
	SubjectID             string                           `json:"subject_id"`
	Plan                  string                           `json:"plan"`
	BillingStatus         types.BillingStatus              `json:"billing_status"`
	VirtualAttendeesCount int64                            `json:"virtual_attendees_count"`
	Totals                []*repository.PaymentStatusTotal `json:"totals"`
	// CollectedAmount is the sum of completed payments in minor units.
	CollectedAmount int64 `json:"collected_amount"`
	RefundedAmount  int64 `json:"refunded_amount"`
}

// Service provides statistics operations
type Service struct {
	repo repository.Repository
}

func New(repo repository.Repository) *Service { return &Service{repo: repo} }

// GetSubjectPaymentSummary aggregates the payment records of one subject
// alongside its current counters.
func (s *Service) GetSubjectPaymentSummary(ctx context.Context, req *PaymentSummaryRequest) (*PaymentSummaryResponse, error) {
	if req == nil || req.SubjectID == "" {
		return nil, apperr.InvalidArgument("subject_id is required")
	}

	var (
		wg     sync.WaitGroup
		totals []*repository.PaymentStatusTotal
		errs   [2]error
		resp   = &PaymentSummaryResponse{SubjectID: req.SubjectID}
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		subject, err := s.repo.GetSubject(ctx, req.SubjectID)
		if err != nil {
			errs[0] = err
			return
		}
		resp.Plan = subject.Plan
		resp.BillingStatus = subject.Billing.Status
		resp.VirtualAttendeesCount = subject.VirtualAttendeesCount
	}()
	go func() {
		defer wg.Done()
		totals, errs[1] = s.repo.SummarizePayments(ctx, req.SubjectID)
	}()
	wg.Wait()

	if errors.Is(errs[0], repository.ErrNotFound) {
		return nil, apperr.NotFound("subject %s not found", req.SubjectID)
	}
	if err := errors.Join(errs[:]...); err != nil {
		return nil, apperr.Internal(err)
	}

	resp.Totals = totals
	byStatus := lo.KeyBy(totals, func(t *repository.PaymentStatusTotal) types.PaymentStatus { return t.Status })
	if t, ok := byStatus[types.PaymentStatusCompleted]; ok {
		resp.CollectedAmount = t.Amount
	}
	if t, ok := byStatus[types.PaymentStatusRefunded]; ok {
		resp.RefundedAmount = t.Amount
	}
	return resp, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
