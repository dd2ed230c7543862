package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/tool"
	"github.com/fatflowers/matchpay/pkg/types"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct {
	db   *gorm.DB
	inTx bool
}

// NewGorm returns a Repository backed by db. db should be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewGorm(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx, inTx: true})
	})
}

func (r *gormRepository) read(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (r *gormRepository) GetSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	var s models.Subject
	if err := r.read(ctx).Where("id = ?", subjectID).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *gormRepository) FindSubjectBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subject, error) {
	if subscriptionID == "" {
		return nil, ErrNotFound
	}
	var s models.Subject
	if err := r.read(ctx).Where("billing_gateway_subscription_id = ?", subscriptionID).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *gormRepository) ListSubjectsByCustomerID(ctx context.Context, customerID string) ([]*models.Subject, error) {
	if customerID == "" {
		return nil, nil
	}
	var list []*models.Subject
	if err := r.read(ctx).Where("billing_gateway_customer_id = ?", customerID).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *gormRepository) UpdateSubjectBilling(ctx context.Context, s *models.Subject) error {
	res := r.db.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", s.ID).
		Select("plan", "features", "billing_status", "billing_gateway_customer_id", "billing_gateway_subscription_id",
			"billing_last_payment_at", "billing_last_payment_amount", "billing_payment_status",
			"billing_current_period_end", "billing_canceled_at", "updated_at").
		Updates(s)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) AddVirtualAttendees(ctx context.Context, subjectID string, delta int64) error {
	res := r.db.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", subjectID).
		Updates(map[string]any{
			"virtual_attendees_count": gorm.Expr("GREATEST(virtual_attendees_count + ?, 0)", delta),
			"updated_at":              time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) SetVirtualAttendees(ctx context.Context, subjectID string, count int64) error {
	res := r.db.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", subjectID).
		Updates(map[string]any{"virtual_attendees_count": count, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) GetPayment(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	if err := r.read(ctx).Where("id = ?", paymentID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	if err := r.read(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) FindActivePayment(ctx context.Context, subjectID, userID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.read(ctx).
		Where("subject_id = ? AND user_id = ? AND status IN ?", subjectID, userID, types.ActivePaymentStatuses).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) FindCompletedPayment(ctx context.Context, subjectID, userID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.read(ctx).
		Where("subject_id = ? AND user_id = ? AND status = ?", subjectID, userID, types.PaymentStatusCompleted).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) ListCompletedPayments(ctx context.Context, subjectID string) ([]*models.PaymentRecord, error) {
	var rows []*models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND status = ?", subjectID, types.PaymentStatusCompleted).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *gormRepository) CreatePayment(ctx context.Context, p *models.PaymentRecord) error {
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *gormRepository) UpdatePayment(ctx context.Context, p *models.PaymentRecord) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentRecord{}).Where("id = ?", p.ID).
		Select("status", "refund_id", "refund_reason", "failure_reason", "completed_at", "refunded_at", "updated_at").
		Updates(p)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (r *gormRepository) ScanPayments(ctx context.Context, req *ScanPaymentsRequest) ([]*models.PaymentRecord, int64, error) {
	if err := NormalizeScan(req); err != nil {
		return nil, 0, err
	}

	tx := r.db.WithContext(ctx).Model(&models.PaymentRecord{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.PaymentRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return rows, total, nil
}

// NormalizeScan applies paging defaults and rejects filters or sorting on
// columns outside ScannablePaymentColumns.
func NormalizeScan(req *ScanPaymentsRequest) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.Size > 200 {
		req.Size = 200
	}
	if req.From < 0 {
		req.From = 0
	}
	if req.SortBy == "" {
		req.SortBy = "created_at"
	}
	if !lo.Contains(ScannablePaymentColumns, req.SortBy) {
		return fmt.Errorf("sorting by %q is not allowed", req.SortBy)
	}
	return types.ValidateFilters(req.Filters, ScannablePaymentColumns)
}

func (r *gormRepository) SummarizePayments(ctx context.Context, subjectID string) ([]*PaymentStatusTotal, error) {
	var rows []*PaymentStatusTotal
	err := r.db.WithContext(ctx).Model(&models.PaymentRecord{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("subject_id = ?", subjectID).
		Group("status").
		Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payments: %w", err)
	}
	return rows, nil
}

func (r *gormRepository) CreatePaymentLog(ctx context.Context, l *models.PaymentLog) error {
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	return translate(r.db.WithContext(ctx).Create(l).Error)
}

func (r *gormRepository) GetMember(ctx context.Context, subjectID, userID string) (*models.SubjectMember, error) {
	var m models.SubjectMember
	if err := r.db.WithContext(ctx).Where("subject_id = ? AND user_id = ?", subjectID, userID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *gormRepository) MarkMemberPaid(ctx context.Context, subjectID, userID string, at time.Time) error {
	m := &models.SubjectMember{
		ID:        tool.GenerateUUIDV7(),
		SubjectID: subjectID,
		UserID:    userID,
		HasPaid:   true,
		PaidAt:    &at,
	}
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"has_paid":    true,
			"paid_at":     at,
			"refunded_at": nil,
			"updated_at":  time.Now(),
		}),
	}).Create(m).Error)
}

func (r *gormRepository) MarkMemberRefunded(ctx context.Context, subjectID, userID string, at time.Time) error {
	return translate(r.db.WithContext(ctx).Model(&models.SubjectMember{}).
		Where("subject_id = ? AND user_id = ?", subjectID, userID).
		Updates(map[string]any{"has_paid": false, "refunded_at": at, "updated_at": time.Now()}).Error)
}

func (r *gormRepository) GetGatewayCustomer(ctx context.Context, userID string) (*models.GatewayCustomer, error) {
	var c models.GatewayCustomer
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormRepository) SaveGatewayCustomer(ctx context.Context, c *models.GatewayCustomer) error {
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_id", "email", "updated_at"}),
	}).Create(c).Error)
}

func (r *gormRepository) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ProcessedWebhookEvent{}).Where("event_id = ?", eventID).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (r *gormRepository) RecordProcessedEvent(ctx context.Context, e *models.ProcessedWebhookEvent) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *gormRepository) SaveWebhookDeliveryLog(ctx context.Context, l *models.WebhookDeliveryLog) error {
	return translate(r.db.WithContext(ctx).Save(l).Error)
}
