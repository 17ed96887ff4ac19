package model

import "time"

// ErrorCode classifies the cause of a downtime.
type ErrorCode struct {
	Code        string    `gorm:"primaryKey;size:64" json:"code"`
	Type        string    `gorm:"size:128;not null" json:"type"`
	Category    string    `gorm:"size:128" json:"category,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IsCritical  bool      `gorm:"not null;default:false" json:"isCritical"` // curated manually
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
