package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/app/service/statistics"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/response"
	"github.com/fatflowers/matchpay/pkg/types"
)

// PaymentScanner lists payment records for admins.
type PaymentScanner interface {
	ScanPayments(ctx context.Context, req *repository.ScanPaymentsRequest) ([]*models.PaymentRecord, int64, error)
}

// SummaryService is implemented by statistics.Service.
type SummaryService interface {
	GetSubjectPaymentSummary(ctx context.Context, req *statistics.PaymentSummaryRequest) (*statistics.PaymentSummaryResponse, error)
}

type PaymentItem struct {
	ID               string              `json:"id"`
	SubjectID        string              `json:"subject_id"`
	UserID           string              `json:"user_id"`
	ProductID        string              `json:"product_id"`
	GatewayPaymentID string              `json:"gateway_payment_id"`
	Amount           int64               `json:"amount"`
	Currency         string              `json:"currency"`
	Status           types.PaymentStatus `json:"status"`
	RefundID         *string             `json:"refund_id"`
	RefundReason     *string             `json:"refund_reason"`
	FailureReason    *string             `json:"failure_reason"`
	CompletedAt      *time.Time          `json:"completed_at"`
	RefundedAt       *time.Time          `json:"refunded_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func toPaymentItem(m *models.PaymentRecord) *PaymentItem {
	return &PaymentItem{
		ID:               m.ID,
		SubjectID:        m.SubjectID,
		UserID:           m.UserID,
		ProductID:        m.ProductID,
		GatewayPaymentID: m.GatewayPaymentID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Status:           m.Status,
		RefundID:         m.RefundID,
		RefundReason:     m.RefundReason,
		FailureReason:    m.FailureReason,
		CompletedAt:      m.CompletedAt,
		RefundedAt:       m.RefundedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type ListPaymentsResponse struct {
	Items []*PaymentItem `json:"items"`
	Total int64          `json:"total"`
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of payment records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body repository.ScanPaymentsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payments [post]
func ApiListPayments(scanner PaymentScanner, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req repository.ScanPaymentsRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, log, err)
			return
		}
		if err := repository.NormalizeScan(&req); err != nil {
			writeError(c, log, apperr.InvalidArgument("%s", err.Error()))
			return
		}
		rows, total, err := scanner.ScanPayments(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		items := lo.Map(rows, func(it *models.PaymentRecord, _ int) *PaymentItem { return toPaymentItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: total}))
	}
}

// @Summary      Get Payment Summary (Admin)
// @Description  Aggregates payment records of one subject by status.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.PaymentSummaryRequest true "Subject"
// @Success      200  {object}  handlers.RespPaymentSummary
// @Router       /api/v1/admin/get_payment_summary [post]
func ApiGetPaymentSummary(svc SummaryService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.PaymentSummaryRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, log, err)
			return
		}
		res, err := svc.GetSubjectPaymentSummary(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminPaymentRoutes(r gin.IRouter, scanner PaymentScanner, stats SummaryService, log *zap.SugaredLogger) {
	r.POST("/list_payments", ApiListPayments(scanner, log))
	r.POST("/get_payment_summary", ApiGetPaymentSummary(stats, log))
}
