package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookDeliveryLogStatus string

const (
	WebhookDeliveryLogStatusReceived     WebhookDeliveryLogStatus = "received"
	WebhookDeliveryLogStatusHandled      WebhookDeliveryLogStatus = "handled"
	WebhookDeliveryLogStatusDuplicate    WebhookDeliveryLogStatus = "duplicate"
	WebhookDeliveryLogStatusHandleFailed WebhookDeliveryLogStatus = "handle_failed"
)

type WebhookDeliveryLog struct {
	ID        string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID   string                   `gorm:"column:event_id;type:varchar(128);index" json:"event_id"`
	EventType string                   `gorm:"column:event_type;type:varchar(128)" json:"event_type"`
	TraceID   string                   `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data      datatypes.JSON           `gorm:"column:data;type:jsonb" json:"data"`
	Result    *datatypes.JSON          `gorm:"column:result;type:jsonb" json:"result"`
	Status    WebhookDeliveryLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func (WebhookDeliveryLog) TableName() string { return "webhook_delivery_log" }
