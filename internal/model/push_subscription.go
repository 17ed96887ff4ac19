package model

import "time"

// PushSubscription is a browser registered for critical downtime alerts on a set of machines.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time

	Machines []*Machine `gorm:"many2many:subscription_machine_mapping;"`
}
