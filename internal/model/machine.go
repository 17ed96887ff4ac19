package model

import "time"

// Machine is a production asset identified by the external machine code carried in reports.
type Machine struct {
	Code        string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
