package models

import "time"

// GatewayCustomer 用户与网关客户的映射，portal 会话只从这里解析客户
type GatewayCustomer struct {
	UserID     string    `gorm:"column:user_id;type:varchar(64);primary_key" json:"user_id"`
	CustomerID string    `gorm:"column:customer_id;type:varchar(128);not null;uniqueIndex" json:"customer_id"`
	Email      string    `gorm:"column:email;type:varchar(256)" json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (GatewayCustomer) TableName() string {
	return "gateway_customer"
}
