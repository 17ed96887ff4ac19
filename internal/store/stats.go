package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"downtime-report-backend/internal/model"
)

// Totals is the overall downtime aggregate for a filter.
type Totals struct {
	IncidentCount    int64   `json:"incidentCount"`
	TotalDowntime    int64   `json:"totalDowntime"`
	AvgDowntime      float64 `json:"avgDowntime"`
	MachinesAffected int64   `json:"machinesAffected"`
}

// GroupStat is one row of a grouped aggregate.
type GroupStat struct {
	Key           string  `json:"key"`
	Label         string  `json:"label"`
	IncidentCount int64   `json:"incidentCount"`
	TotalDowntime int64   `json:"totalDowntime"`
	AvgDowntime   float64 `json:"avgDowntime"`
}

// BucketStat is one time bucket of the timeline.
type BucketStat struct {
	Label         string    `json:"label"`
	Start         time.Time `json:"start"`
	IncidentCount int64     `json:"incidentCount"`
	TotalDowntime int64     `json:"totalDowntime"`
}

// CriticalIssue is a long downtime together with its machine name.
type CriticalIssue struct {
	model.Downtime
	MachineName string `json:"machineName"`
}

// Granularity is the bucket size of a timeline.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// ParseGranularity validates a granularity name; empty means Day.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return Day, nil
	case Day, Week, Month, Year:
		return g, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// PeriodKind is the period length used by ComparePeriods.
type PeriodKind string

const (
	PeriodWeek    PeriodKind = "week"
	PeriodMonth   PeriodKind = "month"
	PeriodQuarter PeriodKind = "quarter"
	PeriodYear    PeriodKind = "year"
)

// ParsePeriodKind validates a period name; empty means PeriodMonth.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch k := PeriodKind(s); k {
	case "":
		return PeriodMonth, nil
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return k, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// PeriodTotals is the aggregate of one comparison period.
type PeriodTotals struct {
	From          time.Time `json:"from"`
	Before        time.Time `json:"before"`
	IncidentCount int64     `json:"incidentCount"`
	TotalDowntime int64     `json:"totalDowntime"`
}

// Comparison holds the current period to date against the previous full period.
// Variations are percentages and are 0 when the previous value is 0.
type Comparison struct {
	Period            PeriodKind   `json:"period"`
	Current           PeriodTotals `json:"current"`
	Previous          PeriodTotals `json:"previous"`
	IncidentVariation float64      `json:"incidentVariation"`
	DowntimeVariation float64      `json:"downtimeVariation"`
}

func (s *gormStore) Totals(ctx context.Context, f Filter) (Totals, error) {
	var t Totals
	err := f.apply(s.db.WithContext(ctx).Model(&model.Downtime{})).
		Select("COUNT(*) AS incident_count, " +
			"COALESCE(SUM(downtimes.duration_minutes), 0) AS total_downtime, " +
			"COALESCE(AVG(downtimes.duration_minutes), 0) AS avg_downtime, " +
			"COUNT(DISTINCT downtimes.machine_code) AS machines_affected").
		Scan(&t).Error
	if err != nil {
		return Totals{}, fmt.Errorf("failed to aggregate totals: %w", err)
	}
	t.AvgDowntime = round2(t.AvgDowntime)
	return t, nil
}

func (s *gormStore) StatsByMachine(ctx context.Context, f Filter) ([]GroupStat, error) {
	q := s.db.WithContext(ctx).Model(&model.Downtime{}).
		Select("downtimes.machine_code AS group_key, " +
			"COALESCE(MAX(machines.name), downtimes.machine_code) AS group_label, " + aggregateColumns).
		Joins("LEFT JOIN machines ON machines.code = downtimes.machine_code").
		Group("downtimes.machine_code")
	return groupStats(f.apply(q), "machine")
}

func (s *gormStore) StatsByErrorType(ctx context.Context, f Filter) ([]GroupStat, error) {
	q := s.db.WithContext(ctx).Model(&model.Downtime{}).
		Select("downtimes.error_type AS group_key, downtimes.error_type AS group_label, " + aggregateColumns).
		Group("downtimes.error_type")
	return groupStats(f.apply(q), "error type")
}

const aggregateColumns = "COUNT(*) AS incident_count, " +
	"SUM(downtimes.duration_minutes) AS total_downtime, " +
	"AVG(downtimes.duration_minutes) AS avg_downtime"

func groupStats(q *gorm.DB, what string) ([]GroupStat, error) {
	var rows []struct {
		GroupKey      string
		GroupLabel    string
		IncidentCount int64
		TotalDowntime int64
		AvgDowntime   float64
	}
	if err := q.Order("total_downtime DESC, group_key").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate by %s: %w", what, err)
	}

	stats := make([]GroupStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, GroupStat{
			Key:           r.GroupKey,
			Label:         r.GroupLabel,
			IncidentCount: r.IncidentCount,
			TotalDowntime: r.TotalDowntime,
			AvgDowntime:   round2(r.AvgDowntime),
		})
	}
	return stats, nil
}

// Timeline buckets downtimes by their start date. Buckets without downtime are omitted.
func (s *gormStore) Timeline(ctx context.Context, f Filter, g Granularity) ([]BucketStat, error) {
	var rows []struct {
		StartTime       time.Time
		DurationMinutes int64
	}
	err := f.apply(s.db.WithContext(ctx).Model(&model.Downtime{})).
		Select("downtimes.start_time, downtimes.duration_minutes").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline rows: %w", err)
	}

	buckets := make(map[time.Time]*BucketStat)
	for _, r := range rows {
		start := bucketStart(r.StartTime.UTC(), g)
		b, ok := buckets[start]
		if !ok {
			b = &BucketStat{Label: bucketLabel(start, g), Start: start}
			buckets[start] = b
		}
		b.IncidentCount++
		b.TotalDowntime += r.DurationMinutes
	}

	out := make([]BucketStat, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func bucketStart(t time.Time, g Granularity) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		return startOfISOWeek(day)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func bucketLabel(start time.Time, g Granularity) string {
	switch g {
	case Week:
		year, week := start.ISOWeek()
		return fmt.Sprintf("Week %d, %d", week, year)
	case Month:
		return start.Format("January 2006")
	case Year:
		return start.Format("2006")
	default:
		return start.Format("2006-01-02")
	}
}

func startOfISOWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// CriticalIssues lists downtimes of at least thresholdMinutes, longest first.
func (s *gormStore) CriticalIssues(ctx context.Context, f Filter, thresholdMinutes, limit int) ([]CriticalIssue, error) {
	var downtimes []model.Downtime
	q := f.apply(s.db.WithContext(ctx).Model(&model.Downtime{})).
		Where("downtimes.duration_minutes >= ?", thresholdMinutes).
		Order("downtimes.duration_minutes DESC, downtimes.start_time DESC, downtimes.id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&downtimes).Error; err != nil {
		return nil, fmt.Errorf("failed to list critical issues: %w", err)
	}

	codes := make([]string, 0, len(downtimes))
	for _, d := range downtimes {
		codes = append(codes, d.MachineCode)
	}
	names := make(map[string]string)
	if len(codes) > 0 {
		var machines []model.Machine
		if err := s.db.WithContext(ctx).Where("code IN ?", codes).Find(&machines).Error; err != nil {
			return nil, fmt.Errorf("failed to load machines for critical issues: %w", err)
		}
		for _, m := range machines {
			names[m.Code] = m.Name
		}
	}

	issues := make([]CriticalIssue, 0, len(downtimes))
	for _, d := range downtimes {
		name, ok := names[d.MachineCode]
		if !ok {
			name = d.MachineCode
		}
		issues = append(issues, CriticalIssue{Downtime: d, MachineName: name})
	}
	return issues, nil
}

// ComparePeriods compares the current period up to and including today with the previous
// full period of the same kind.
func (s *gormStore) ComparePeriods(ctx context.Context, kind PeriodKind, now time.Time) (Comparison, error) {
	curFrom, prevFrom := periodBounds(kind, now.UTC())
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	curBefore := today.AddDate(0, 0, 1)

	current, err := s.periodTotals(ctx, curFrom, curBefore)
	if err != nil {
		return Comparison{}, err
	}
	previous, err := s.periodTotals(ctx, prevFrom, curFrom)
	if err != nil {
		return Comparison{}, err
	}

	return Comparison{
		Period:            kind,
		Current:           current,
		Previous:          previous,
		IncidentVariation: variation(current.IncidentCount, previous.IncidentCount),
		DowntimeVariation: variation(current.TotalDowntime, previous.TotalDowntime),
	}, nil
}

func (s *gormStore) periodTotals(ctx context.Context, from, before time.Time) (PeriodTotals, error) {
	t, err := s.Totals(ctx, Filter{From: &from, Before: &before})
	if err != nil {
		return PeriodTotals{}, err
	}
	return PeriodTotals{From: from, Before: before, IncidentCount: t.IncidentCount, TotalDowntime: t.TotalDowntime}, nil
}

// periodBounds returns the start of the current period and of the one before it.
func periodBounds(kind PeriodKind, now time.Time) (time.Time, time.Time) {
	switch kind {
	case PeriodWeek:
		cur := startOfISOWeek(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
		return cur, cur.AddDate(0, 0, -7)
	case PeriodQuarter:
		firstMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		cur := time.Date(now.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
		return cur, cur.AddDate(0, -3, 0)
	case PeriodYear:
		cur := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return cur, cur.AddDate(-1, 0, 0)
	default:
		cur := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return cur, cur.AddDate(0, -1, 0)
	}
}

func variation(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	return round2(float64(current-previous) / float64(previous) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
