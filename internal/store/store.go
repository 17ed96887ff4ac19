package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"downtime-report-backend/internal/extract"
	"downtime-report-backend/internal/model"
	"downtime-report-backend/internal/parse"
)

const upsertBatchSize = 200

// ErrReportNotFound is returned when a report id does not exist.
var ErrReportNotFound = errors.New("report not found")

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Ingestion
	Persist(ctx context.Context, result *extract.Result) (PersistStats, error)

	// Report metadata
	CreateReport(ctx context.Context, report *model.XmlReport) error
	ListReports(ctx context.Context) ([]model.XmlReport, error)
	GetReport(ctx context.Context, id int64) (*model.XmlReport, error)
	DeleteReport(ctx context.Context, id int64) (*model.XmlReport, error)

	// Catalog
	ListMachines(ctx context.Context) ([]model.Machine, error)
	ListErrorCodes(ctx context.Context) ([]model.ErrorCode, error)
	ListDowntimes(ctx context.Context, f Filter, limit int) ([]model.Downtime, error)

	// Aggregation
	Totals(ctx context.Context, f Filter) (Totals, error)
	StatsByMachine(ctx context.Context, f Filter) ([]GroupStat, error)
	StatsByErrorType(ctx context.Context, f Filter) ([]GroupStat, error)
	Timeline(ctx context.Context, f Filter, g Granularity) ([]BucketStat, error)
	CriticalIssues(ctx context.Context, f Filter, thresholdMinutes, limit int) ([]CriticalIssue, error)
	ComparePeriods(ctx context.Context, kind PeriodKind, now time.Time) (Comparison, error)
}

// PersistStats counts the rows written by Persist.
type PersistStats struct {
	Machines   int `json:"machines"`
	ErrorCodes int `json:"errorCodes"`
	Downtimes  int `json:"downtimes"`
	Skipped    int `json:"skipped"`
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Persist upserts the machines, error codes and downtimes of result in one transaction.
// Incidents missing a machine, an id, a positive duration or readable dates are skipped;
// any storage error rolls the whole batch back.
func (s *gormStore) Persist(ctx context.Context, result *extract.Result) (PersistStats, error) {
	machines, errorCodes, downtimes, skipped := prepareRows(result)
	stats := PersistStats{Skipped: skipped}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := batchUpsertMachines(tx, machines); err != nil {
			return err
		}
		if err := batchUpsertErrorCodes(tx, errorCodes); err != nil {
			return err
		}
		return batchUpsertDowntimes(tx, downtimes)
	})
	if err != nil {
		return PersistStats{}, err
	}

	stats.Machines = len(machines)
	stats.ErrorCodes = len(errorCodes)
	stats.Downtimes = len(downtimes)
	return stats, nil
}

func prepareRows(result *extract.Result) ([]model.Machine, []model.ErrorCode, []model.Downtime, int) {
	machineIndex := make(map[string]int)
	var machines []model.Machine
	addMachine := func(code, name string) {
		if name == "" {
			name = code
		}
		if i, ok := machineIndex[code]; ok {
			machines[i].Name = name
			return
		}
		machineIndex[code] = len(machines)
		machines = append(machines, model.Machine{Code: code, Name: name})
	}
	codes := make([]string, 0, len(result.Machines))
	for code := range result.Machines {
		if code != "" {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	for _, code := range codes {
		addMachine(code, result.Machines[code])
	}

	codeIndex := make(map[string]int)
	var errorCodes []model.ErrorCode
	downtimeIndex := make(map[string]int)
	var downtimes []model.Downtime
	skipped := 0

	for _, rec := range result.Downtimes {
		if rec.MachineID == "" || rec.DowntimeID == "" || rec.DurationMinutes <= 0 {
			skipped++
			continue
		}
		start, errStart := parse.ParseDate(rec.StartDate)
		end, errEnd := parse.ParseDate(rec.EndDate)
		if errStart != nil || errEnd != nil {
			log.WithField("downtime", rec.DowntimeID).Warn("skipping downtime with unreadable dates")
			skipped++
			continue
		}

		// Every downtime must reference a stored machine.
		if _, ok := machineIndex[rec.MachineID]; !ok {
			addMachine(rec.MachineID, rec.MachineName)
		}

		if rec.ErrorCode != "" {
			ec := model.ErrorCode{Code: rec.ErrorCode, Type: rec.ErrorType, Category: rec.ErrorLocation}
			if i, ok := codeIndex[rec.ErrorCode]; ok {
				errorCodes[i] = ec
			} else {
				codeIndex[rec.ErrorCode] = len(errorCodes)
				errorCodes = append(errorCodes, ec)
			}
		}

		d := model.Downtime{
			ID:              rec.DowntimeID,
			MachineCode:     rec.MachineID,
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: rec.DurationMinutes,
			ErrorCode:       rec.ErrorCode,
			ErrorType:       rec.ErrorType,
			Description:     rec.Description,
		}
		// A single INSERT .. ON CONFLICT may not touch the same row twice; the last one wins.
		if i, ok := downtimeIndex[d.ID]; ok {
			downtimes[i] = d
		} else {
			downtimeIndex[d.ID] = len(downtimes)
			downtimes = append(downtimes, d)
		}
	}
	return machines, errorCodes, downtimes, skipped
}

func batchUpsertMachines(tx *gorm.DB, machines []model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).CreateInBatches(&machines, upsertBatchSize).Error; err != nil {
		return fmt.Errorf("batch upsert machines failed: %w", err)
	}
	return nil
}

func batchUpsertErrorCodes(tx *gorm.DB, codes []model.ErrorCode) error {
	if len(codes) == 0 {
		return nil
	}
	// description and is_critical are curated by hand and never overwritten here.
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "category", "updated_at"}),
	}).CreateInBatches(&codes, upsertBatchSize).Error; err != nil {
		return fmt.Errorf("batch upsert error codes failed: %w", err)
	}
	return nil
}

func batchUpsertDowntimes(tx *gorm.DB, downtimes []model.Downtime) error {
	if len(downtimes) == 0 {
		return nil
	}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"machine_code", "start_time", "end_time", "duration_minutes",
			"error_code", "error_type", "description", "updated_at",
		}),
	}).CreateInBatches(&downtimes, upsertBatchSize).Error; err != nil {
		return fmt.Errorf("batch upsert downtimes failed: %w", err)
	}
	return nil
}

func (s *gormStore) CreateReport(ctx context.Context, report *model.XmlReport) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report metadata: %w", err)
	}
	return nil
}

func (s *gormStore) ListReports(ctx context.Context) ([]model.XmlReport, error) {
	var reports []model.XmlReport
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *gormStore) GetReport(ctx context.Context, id int64) (*model.XmlReport, error) {
	var report model.XmlReport
	if err := s.db.WithContext(ctx).First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// DeleteReport removes only the metadata row; downtimes imported from the report stay.
func (s *gormStore) DeleteReport(ctx context.Context, id int64) (*model.XmlReport, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&model.XmlReport{}, id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete report %d: %w", id, err)
	}
	return report, nil
}

func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("code").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *gormStore) ListErrorCodes(ctx context.Context) ([]model.ErrorCode, error) {
	var codes []model.ErrorCode
	if err := s.db.WithContext(ctx).Order("code").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *gormStore) ListDowntimes(ctx context.Context, f Filter, limit int) ([]model.Downtime, error) {
	var downtimes []model.Downtime
	q := f.apply(s.db.WithContext(ctx).Model(&model.Downtime{})).
		Order("downtimes.start_time DESC, downtimes.id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&downtimes).Error; err != nil {
		return nil, err
	}
	return downtimes, nil
}
