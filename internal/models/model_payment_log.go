package models

import (
	"time"

	"github.com/fatflowers/matchpay/pkg/types"
	"gorm.io/datatypes"
)

// PaymentLog 支付记录变更日志，用于问题排查
type PaymentLog struct {
	ID        string `gorm:"column:id;primary_key;type:uuid;index:idx_payment_id_id,priority:2,sort:desc"`
	PaymentID string `gorm:"column:payment_id;type:uuid;not null;index:idx_payment_id_id,priority:1"`
	SubjectID string `gorm:"column:subject_id;type:varchar(64);not null"`
	UserID    string `gorm:"column:user_id;type:varchar(64);not null"`
	// Reason 变更原因
	Reason types.PaymentChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before 变更前的记录
	Before datatypes.JSONType[*PaymentRecord] `gorm:"column:before;type:jsonb;default:'null'"`
	// After 变更后的记录
	After datatypes.JSONType[*PaymentRecord] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra 额外上下文，如触发来源、事件 id
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time         `json:"created_at"`
}

func (PaymentLog) TableName() string {
	return "payment_log"
}
