package models

import "time"

// ProcessedWebhookEvent 已处理的网关事件，只追加
// 存在即表示该事件的副作用已生效
type ProcessedWebhookEvent struct {
	EventID     string    `gorm:"column:event_id;type:varchar(128);primary_key" json:"event_id"`
	EventType   string    `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null" json:"processed_at"`
}

func (ProcessedWebhookEvent) TableName() string {
	return "processed_webhook_event"
}
