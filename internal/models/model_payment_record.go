package models

import (
	"time"

	"github.com/fatflowers/matchpay/pkg/types"
)

// PaymentRecord 一次购买尝试
// 同一 (subject_id, user_id) 至多一条 pending/completed 记录，由部分唯一索引保证
type PaymentRecord struct {
	ID        string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	SubjectID string `gorm:"column:subject_id;type:varchar(64);not null;index:idx_subject_id_status,priority:1;uniqueIndex:uniq_payment_record_active,priority:1,where:status = 'pending' OR status = 'completed'" json:"subject_id"`
	UserID    string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uniq_payment_record_active,priority:2" json:"user_id"`
	ProductID string `gorm:"column:product_id;type:varchar(64)" json:"product_id"`
	// Amount 最小货币单位
	Amount   int64               `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency string              `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	Status   types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;index:idx_subject_id_status,priority:2" json:"status"`
	// GatewayPaymentID 支付网关 payment intent id
	GatewayPaymentID string  `gorm:"column:gateway_payment_id;type:varchar(128);not null;uniqueIndex" json:"gateway_payment_id"`
	RefundID         *string `gorm:"column:refund_id;type:varchar(128);default:null" json:"refund_id"`
	RefundReason     *string `gorm:"column:refund_reason;type:varchar(128);default:null" json:"refund_reason"`
	FailureReason    *string `gorm:"column:failure_reason;type:varchar(256);default:null" json:"failure_reason"`

	CompletedAt *time.Time `gorm:"column:completed_at;default:null" json:"completed_at"`
	RefundedAt  *time.Time `gorm:"column:refunded_at;default:null" json:"refunded_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_record"
}

func (r *PaymentRecord) IsActive() bool {
	return r != nil && r.Status.Active()
}
