package model

import "time"

// Downtime is one machine stoppage taken from an imported report.
type Downtime struct {
	ID              string    `gorm:"primaryKey;size:128" json:"id"`
	MachineCode     string    `gorm:"size:64;not null;index" json:"machineId"`
	StartTime       time.Time `gorm:"not null;index" json:"startTime"`
	EndTime         time.Time `gorm:"not null" json:"endTime"`
	DurationMinutes int       `gorm:"not null" json:"durationMinutes"`
	ErrorCode       string    `gorm:"size:64;index" json:"errorCode"`
	ErrorType       string    `gorm:"size:128;index" json:"errorType"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Associations
	Machine Machine `gorm:"foreignKey:MachineCode;references:Code;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}
