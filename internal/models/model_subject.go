package models

import (
	"time"

	"github.com/fatflowers/matchpay/pkg/types"
	"gorm.io/datatypes"
)

// SubjectBilling 计费状态，只由对账和退款/确认流程写入
type SubjectBilling struct {
	Status                types.BillingStatus `gorm:"column:status;type:varchar(32)" json:"status"`
	GatewayCustomerID     string              `gorm:"column:gateway_customer_id;type:varchar(128);index" json:"gateway_customer_id"`
	GatewaySubscriptionID string              `gorm:"column:gateway_subscription_id;type:varchar(128);index" json:"gateway_subscription_id"`
	LastPaymentAt         *time.Time          `gorm:"column:last_payment_at;default:null" json:"last_payment_at"`
	LastPaymentAmount     *int64              `gorm:"column:last_payment_amount;type:bigint;default:null" json:"last_payment_amount"`
	PaymentStatus         string              `gorm:"column:payment_status;type:varchar(32)" json:"payment_status"`
	CurrentPeriodEnd      *time.Time          `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	CanceledAt            *time.Time          `gorm:"column:canceled_at;default:null" json:"canceled_at"`
}

// Subject 被计费的主体：粉丝账号、场馆或活动
type Subject struct {
	ID      string            `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Kind    types.SubjectKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	OwnerID string            `gorm:"column:owner_id;type:varchar(64);not null;index" json:"owner_id"`
	Name    string            `gorm:"column:name;type:varchar(256)" json:"name"`

	Plan     string                              `gorm:"column:plan;type:varchar(64);not null;default:'free'" json:"plan"`
	Features datatypes.JSONType[map[string]bool] `gorm:"column:features;type:jsonb;default:'{}'" json:"features"`
	Billing  SubjectBilling                      `gorm:"embedded;embeddedPrefix:billing_" json:"billing"`

	// AllowsVirtualAttendance 是否允许购买线上参与
	AllowsVirtualAttendance bool `gorm:"column:allows_virtual_attendance;not null;default:false" json:"allows_virtual_attendance"`
	// TicketPrice 主体自定义价格，最小货币单位，为空时使用商品配置
	TicketPrice           *int64 `gorm:"column:ticket_price;type:bigint;default:null" json:"ticket_price"`
	TicketCurrency        string `gorm:"column:ticket_currency;type:varchar(16)" json:"ticket_currency"`
	VirtualAttendeesCount int64  `gorm:"column:virtual_attendees_count;not null;default:0" json:"virtual_attendees_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subject) TableName() string {
	return "subject"
}

// IsManagedBy reports whether userID owns or hosts the subject.
func (s *Subject) IsManagedBy(userID string) bool {
	return s != nil && userID != "" && s.OwnerID == userID
}

// FeatureMap returns a copy of the feature flags.
func (s *Subject) FeatureMap() map[string]bool {
	out := map[string]bool{}
	if s == nil {
		return out
	}
	for k, v := range s.Features.Data() {
		out[k] = v
	}
	return out
}
