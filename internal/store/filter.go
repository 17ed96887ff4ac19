package store

import (
	"time"

	"gorm.io/gorm"
)

// Filter narrows downtime queries. Zero fields are ignored.
type Filter struct {
	// From is inclusive, Before exclusive; both compare against the downtime start.
	From        *time.Time
	Before      *time.Time
	MachineCode string
	ErrorType   string
	ErrorCode   string
}

// DateRange builds a filter from inclusive calendar dates, either of which may be zero.
func DateRange(from, to time.Time) Filter {
	var f Filter
	if !from.IsZero() {
		f.From = &from
	}
	if !to.IsZero() {
		before := to.AddDate(0, 0, 1)
		f.Before = &before
	}
	return f
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.From != nil {
		q = q.Where("downtimes.start_time >= ?", *f.From)
	}
	if f.Before != nil {
		q = q.Where("downtimes.start_time < ?", *f.Before)
	}
	if f.MachineCode != "" {
		q = q.Where("downtimes.machine_code = ?", f.MachineCode)
	}
	if f.ErrorType != "" {
		q = q.Where("downtimes.error_type = ?", f.ErrorType)
	}
	if f.ErrorCode != "" {
		q = q.Where("downtimes.error_code = ?", f.ErrorCode)
	}
	return q
}
