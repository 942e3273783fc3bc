package models

import "time"

type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_alert_user_day,priority:1" json:"user_id"`
	Day       string    `gorm:"type:varchar(10);index:idx_alert_user_day,priority:2" json:"day"`
	Code      string    `gorm:"size:40" json:"code"` // "calories_over_goal" | "sodium_over_goal"
	Type      string    `gorm:"size:20" json:"type"` // "warning" | "info"
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
