package model

import (
	"time"

	"gorm.io/datatypes"
)

// XmlReport records one uploaded report file and what was derived from it.
// Deleting it does not touch the downtimes imported from the file.
type XmlReport struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	FileName      string         `gorm:"size:256;not null" json:"fileName"`
	FilePath      string         `gorm:"size:1024;not null" json:"filePath"`
	FileSize      int64          `gorm:"not null" json:"fileSize"`
	ContentHash   string         `gorm:"size:64;index" json:"contentHash"`
	IncidentCount int            `gorm:"not null" json:"incidentCount"`
	TotalDowntime int            `gorm:"not null" json:"totalDowntime"`
	IsSynthetic   bool           `gorm:"not null;default:false" json:"isSynthetic"`
	Summary       datatypes.JSON `json:"summary"`
	CreatedAt     time.Time      `gorm:"not null" json:"createdAt"`
}
