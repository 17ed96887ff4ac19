package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/extract"
	"downtime-report-backend/internal/model"
	"downtime-report-backend/internal/notification"
	"downtime-report-backend/internal/parse"
	"downtime-report-backend/internal/store"
)

// ErrUnreadableSource is returned when a report file cannot be read or is not XML.
var ErrUnreadableSource = errors.New("report source is unreadable")

// AlertDispatcher queues critical downtime alerts.
type AlertDispatcher interface {
	Dispatch(alert notification.Alert) bool
}

// Meta describes an uploaded file.
type Meta struct {
	// FileName is the name the client uploaded the file under.
	FileName string
}

// Response is what an import hands back to the caller. Extracted data is returned even
// when persisting it failed.
type Response struct {
	ReportInfo   *model.XmlReport          `json:"reportInfo"`
	Machines     map[string]string         `json:"machines"`
	Downtimes    []extract.IncidentRecord  `json:"downtimes"`
	ErrorCodes   []extract.ErrorCodeRecord `json:"errorCodes"`
	Summary      extract.Summary           `json:"summary"`
	Warnings     []string                  `json:"warnings,omitempty"`
	Persisted    bool                      `json:"persisted"`
	PersistStats *store.PersistStats       `json:"persistStats,omitempty"`
	PersistError string                    `json:"persistError,omitempty"`
}

// Service runs report files through extraction and persistence.
type Service struct {
	cfg      *config.Config
	store    store.Store
	alerts   AlertDispatcher
	synth    *extract.Synthesizer
	dates    parse.DateNormalizer
	onChange func()
}

// NewService creates an ingestion service. alerts may be nil when push is not configured.
func NewService(cfg *config.Config, s store.Store, alerts AlertDispatcher) *Service {
	initMetrics()
	return &Service{
		cfg:    cfg,
		store:  s,
		alerts: alerts,
		synth:  extract.NewSynthesizer(cfg.Ingest.DemoSeed),
	}
}

// OnChange registers a callback run after stored data changed, e.g. to drop cached responses.
func (s *Service) OnChange(fn func()) {
	s.onChange = fn
}

// SaveUpload writes an uploaded file into the upload directory under a unique name.
func (s *Service) SaveUpload(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.Ingest.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.Ingest.UploadDir, uuid.NewString()+"-"+filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, f.Close()
}

// IngestFile imports the report at path.
func (s *Service) IngestFile(ctx context.Context, path string, meta Meta) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		reportsTotal.WithLabelValues("unreadable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	if meta.FileName == "" {
		meta.FileName = filepath.Base(path)
	}

	doc, err := parseDocument(data)
	if err != nil {
		reportsTotal.WithLabelValues("unreadable").Inc()
		return nil, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	logger := log.WithFields(log.Fields{"file": meta.FileName, "hash": hash[:12]})

	walker := extract.NewWalker(extract.WalkerOptions{
		Namespace:          hash,
		DefaultMachineID:   s.cfg.Ingest.DefaultMachineID,
		DefaultMachineName: s.cfg.Ingest.DefaultMachineName,
		Dates:              s.dates,
	})
	result := walker.Walk(doc)

	if result.Empty() && s.cfg.Ingest.DemoEnabled() {
		logger.Warn("report holds no usable incidents, answering with synthetic demo data")
		warnings := result.Warnings
		result = s.synth.Synthesize(result.Summary.DateRange)
		result.Warnings = warnings
	}

	resp := newResponse(result)
	source := "real"
	if result.Summary.IsSynthetic {
		source = "synthetic"
	}
	reportsTotal.WithLabelValues(source).Inc()
	incidentsTotal.WithLabelValues(source).Add(float64(len(result.Downtimes)))

	// Synthetic incidents are shown to the caller but never stored.
	if !result.Summary.IsSynthetic && !result.Empty() {
		stats, err := s.store.Persist(ctx, result)
		if err != nil {
			persistFailures.Inc()
			logger.Errorf("failed to persist extracted incidents: %v", err)
			resp.PersistError = err.Error()
		} else {
			resp.Persisted = true
			resp.PersistStats = &stats
			logger.WithFields(log.Fields{
				"machines":  stats.Machines,
				"downtimes": stats.Downtimes,
				"skipped":   stats.Skipped,
			}).Info("report persisted")
			s.dispatchAlerts(result)
		}
	}

	report, err := s.createReport(ctx, path, int64(len(data)), hash, meta, result)
	if err != nil {
		logger.Errorf("failed to record report metadata: %v", err)
		if resp.PersistError == "" {
			resp.PersistError = err.Error()
		}
	}
	resp.ReportInfo = report

	s.changed()
	return resp, nil
}

// DeleteReport removes the report metadata and its uploaded file. Incidents imported from
// the report are kept.
func (s *Service) DeleteReport(ctx context.Context, id int64) (*model.XmlReport, error) {
	report, err := s.store.DeleteReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.FilePath != "" {
		if err := os.Remove(report.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("failed to remove report file %s: %v", report.FilePath, err)
		}
	}
	s.changed()
	return report, nil
}

func parseDocument(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: document has no root element", ErrUnreadableSource)
}

func (s *Service) createReport(ctx context.Context, path string, size int64, hash string, meta Meta, result *extract.Result) (*model.XmlReport, error) {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report summary: %w", err)
	}
	report := &model.XmlReport{
		FileName:      meta.FileName,
		FilePath:      path,
		FileSize:      size,
		ContentHash:   hash,
		IncidentCount: result.Summary.TotalIncidents,
		TotalDowntime: result.Summary.TotalDowntime,
		IsSynthetic:   result.Summary.IsSynthetic,
		Summary:       datatypes.JSON(summary),
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) dispatchAlerts(result *extract.Result) {
	if s.alerts == nil {
		return
	}
	threshold := s.cfg.Stats.CriticalThresholdMinutes
	for _, rec := range result.Downtimes {
		if rec.DurationMinutes < threshold || rec.MachineID == "" || rec.DowntimeID == "" {
			continue
		}
		queued := s.alerts.Dispatch(notification.Alert{
			DowntimeID:      rec.DowntimeID,
			MachineCode:     rec.MachineID,
			DurationMinutes: rec.DurationMinutes,
			ErrorType:       rec.ErrorType,
		})
		alertsTotal.WithLabelValues(strconv.FormatBool(queued)).Inc()
	}
}

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func newResponse(result *extract.Result) *Response {
	codes := make([]extract.ErrorCodeRecord, 0, len(result.ErrorCodes))
	for _, ec := range result.ErrorCodes {
		codes = append(codes, ec)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].Code != codes[j].Code {
			return codes[i].Code < codes[j].Code
		}
		return codes[i].Type < codes[j].Type
	})
	return &Response{
		Machines:   result.Machines,
		Downtimes:  result.Downtimes,
		ErrorCodes: codes,
		Summary:    result.Summary,
		Warnings:   result.Warnings,
	}
}
