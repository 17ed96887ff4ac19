package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/model"
)

const (
	processedDir = "processed"
	failedDir    = "failed"

	// maxAttempts bounds how often a file whose incidents cannot be stored is retried.
	maxAttempts = 3
)

var errNotStored = errors.New("incidents were not stored")

// Importer is the part of the ingestion service the watcher needs.
type Importer interface {
	SaveUpload(name string, r io.Reader) (string, error)
	IngestFile(ctx context.Context, path string, meta ingest.Meta) (*ingest.Response, error)
	DeleteReport(ctx context.Context, id int64) (*model.XmlReport, error)
}

// Service polls an inbox directory and imports every report file dropped into it.
// Imported files move to processed/, unreadable ones to failed/. Files that hit any other
// error stay in place and are retried on the next scan, up to maxAttempts when the store
// keeps rejecting their incidents.
type Service struct {
	dir      string
	interval time.Duration
	importer Importer
	attempts map[string]int
}

// NewService creates an inbox watcher for cfg.Ingest.InboxDir.
func NewService(cfg *config.Config, importer Importer) *Service {
	return &Service{
		dir:      cfg.Ingest.InboxDir,
		interval: cfg.Ingest.PollInterval,
		importer: importer,
		attempts: make(map[string]int),
	}
}

// Run scans the inbox until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if s.dir == "" {
		log.Info("Inbox directory is not configured. Watcher not starting.")
		return
	}
	log.Infof("Starting inbox watcher on %s", s.dir)

	s.ScanOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Inbox watcher shutting down.")
			return
		case <-timer.C:
			s.ScanOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// ScanOnce imports the report files currently in the inbox, oldest name first, and returns
// how many were imported.
func (s *Service) ScanOnce(ctx context.Context) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Errorf("Error reading inbox %s: %v", s.dir, err)
		return 0
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	imported := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		err := s.importFile(ctx, name)
		switch {
		case err == nil:
			imported++
			delete(s.attempts, name)
			s.moveTo(name, processedDir)
		case errors.Is(err, ingest.ErrUnreadableSource):
			log.Warnf("Inbox file %s is not a readable report: %v", name, err)
			delete(s.attempts, name)
			s.moveTo(name, failedDir)
		case errors.Is(err, errNotStored):
			s.attempts[name]++
			if s.attempts[name] >= maxAttempts {
				log.Errorf("Giving up on inbox file %s after %d attempts: %v", name, s.attempts[name], err)
				delete(s.attempts, name)
				s.moveTo(name, failedDir)
				continue
			}
			log.Errorf("Error importing inbox file %s, will retry: %v", name, err)
		default:
			log.Errorf("Error importing inbox file %s, will retry: %v", name, err)
		}
	}
	if imported > 0 {
		log.Infof("Inbox scan imported %d report(s)", imported)
	}
	return imported
}

func (s *Service) importFile(ctx context.Context, name string) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	saved, err := s.importer.SaveUpload(name, f)
	if err != nil {
		return err
	}
	resp, err := s.importer.IngestFile(ctx, saved, ingest.Meta{FileName: name})
	if err != nil {
		return err
	}
	if !resp.Persisted && resp.PersistError != "" {
		// The next attempt records the report again, so drop this one.
		if resp.ReportInfo != nil {
			if _, err := s.importer.DeleteReport(ctx, resp.ReportInfo.ID); err != nil {
				log.Warnf("Failed to discard report %d of %s: %v", resp.ReportInfo.ID, name, err)
			}
		} else {
			os.Remove(saved)
		}
		return fmt.Errorf("%w: %s", errNotStored, resp.PersistError)
	}
	if resp.PersistError != "" {
		log.Warnf("Inbox file %s imported without report metadata: %s", name, resp.PersistError)
	}
	return nil
}

func (s *Service) moveTo(name, sub string) {
	dst := filepath.Join(s.dir, sub)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		log.Errorf("Failed to create %s: %v", dst, err)
		return
	}
	if err := os.Rename(filepath.Join(s.dir, name), filepath.Join(dst, name)); err != nil {
		log.Errorf("Failed to move inbox file %s to %s: %v", name, sub, err)
	}
}
