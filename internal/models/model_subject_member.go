package models

import "time"

// SubjectMember 用户在主体下的付费参与状态
type SubjectMember struct {
	ID         string     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubjectID  string     `gorm:"column:subject_id;type:varchar(64);not null;uniqueIndex:uniq_subject_member,priority:1" json:"subject_id"`
	UserID     string     `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uniq_subject_member,priority:2" json:"user_id"`
	HasPaid    bool       `gorm:"column:has_paid;not null;default:false" json:"has_paid"`
	PaidAt     *time.Time `gorm:"column:paid_at;default:null" json:"paid_at"`
	RefundedAt *time.Time `gorm:"column:refunded_at;default:null" json:"refunded_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (SubjectMember) TableName() string {
	return "subject_member"
}
