package inbox

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/model"
)

// mockImporter is a mock implementation of the Importer interface.
type mockImporter struct {
	SaveUploadFunc   func(name string, r io.Reader) (string, error)
	IngestFileFunc   func(ctx context.Context, path string, meta ingest.Meta) (*ingest.Response, error)
	DeleteReportFunc func(ctx context.Context, id int64) (*model.XmlReport, error)
}

func (m *mockImporter) SaveUpload(name string, r io.Reader) (string, error) {
	return m.SaveUploadFunc(name, r)
}

func (m *mockImporter) IngestFile(ctx context.Context, path string, meta ingest.Meta) (*ingest.Response, error) {
	return m.IngestFileFunc(ctx, path, meta)
}

func (m *mockImporter) DeleteReport(ctx context.Context, id int64) (*model.XmlReport, error) {
	return m.DeleteReportFunc(ctx, id)
}

func newInbox(t *testing.T, files map[string]string) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	cfg := &config.Config{}
	cfg.Ingest.InboxDir = dir
	cfg.Ingest.PollInterval = time.Hour
	return dir, cfg
}

func TestService_ScanOnce(t *testing.T) {
	dir, cfg := newInbox(t, map[string]string{
		"b-week2.xml": "good",
		"a-week1.XML": "good",
		"broken.xml":  "bad",
		"flaky.xml":   "flaky",
		"notes.txt":   "ignored",
	})

	var ingested []string
	var discarded []int64
	importer := &mockImporter{
		SaveUploadFunc: func(name string, r io.Reader) (string, error) {
			body, err := io.ReadAll(r)
			require.NoError(t, err)
			return string(body), nil
		},
		IngestFileFunc: func(ctx context.Context, saved string, meta ingest.Meta) (*ingest.Response, error) {
			ingested = append(ingested, meta.FileName)
			switch saved {
			case "bad":
				return nil, ingest.ErrUnreadableSource
			case "flaky":
				return &ingest.Response{PersistError: "connection refused", ReportInfo: &model.XmlReport{ID: 7}}, nil
			}
			return &ingest.Response{Persisted: true}, nil
		},
		DeleteReportFunc: func(ctx context.Context, id int64) (*model.XmlReport, error) {
			discarded = append(discarded, id)
			return &model.XmlReport{ID: id}, nil
		},
	}

	service := NewService(cfg, importer)
	assert.Equal(t, 2, service.ScanOnce(context.Background()))
	assert.Equal(t, []string{"a-week1.XML", "b-week2.xml", "broken.xml", "flaky.xml"}, ingested)

	assert.FileExists(t, filepath.Join(dir, processedDir, "a-week1.XML"))
	assert.FileExists(t, filepath.Join(dir, processedDir, "b-week2.xml"))
	assert.FileExists(t, filepath.Join(dir, failedDir, "broken.xml"))
	assert.FileExists(t, filepath.Join(dir, "flaky.xml"), "persist failures are retried")
	assert.Equal(t, []int64{7}, discarded, "the report row of a failed attempt is dropped")
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestService_ScanOnceGivesUpOnRepeatedPersistFailure(t *testing.T) {
	dir, cfg := newInbox(t, map[string]string{"long-codes.xml": "rejected"})
	uploads := t.TempDir()

	var discarded []int64
	importer := &mockImporter{
		SaveUploadFunc: func(name string, r io.Reader) (string, error) {
			f, err := os.CreateTemp(uploads, "*-"+name)
			require.NoError(t, err)
			defer f.Close()
			_, err = io.Copy(f, r)
			return f.Name(), err
		},
		IngestFileFunc: func(ctx context.Context, saved string, meta ingest.Meta) (*ingest.Response, error) {
			return &ingest.Response{PersistError: "value too long for type character varying(64)"}, nil
		},
		DeleteReportFunc: func(ctx context.Context, id int64) (*model.XmlReport, error) {
			discarded = append(discarded, id)
			return nil, nil
		},
	}

	service := NewService(cfg, importer)
	for i := 1; i < maxAttempts; i++ {
		assert.Equal(t, 0, service.ScanOnce(context.Background()))
		assert.FileExists(t, filepath.Join(dir, "long-codes.xml"), "attempt %d is retried", i)
	}
	assert.Equal(t, 0, service.ScanOnce(context.Background()))
	assert.FileExists(t, filepath.Join(dir, failedDir, "long-codes.xml"))
	assert.NoFileExists(t, filepath.Join(dir, "long-codes.xml"))

	assert.Empty(t, discarded, "no report row was recorded")
	copies, err := os.ReadDir(uploads)
	require.NoError(t, err)
	assert.Empty(t, copies, "failed attempts leave no upload copies behind")

	assert.Equal(t, 0, service.ScanOnce(context.Background()))
	assert.Empty(t, service.attempts)
}

func TestService_ScanOnceKeepsFileWhenSaveFails(t *testing.T) {
	dir, cfg := newInbox(t, map[string]string{"week1.xml": "good"})

	importer := &mockImporter{
		SaveUploadFunc: func(name string, r io.Reader) (string, error) {
			return "", errors.New("disk full")
		},
		IngestFileFunc: func(ctx context.Context, path string, meta ingest.Meta) (*ingest.Response, error) {
			t.Fatal("nothing to ingest when the upload could not be saved")
			return nil, nil
		},
	}

	assert.Equal(t, 0, NewService(cfg, importer).ScanOnce(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "week1.xml"))
}

func TestService_RunStopsOnCancel(t *testing.T) {
	_, cfg := newInbox(t, map[string]string{"week1.xml": "good"})

	scanned := make(chan string, 1)
	importer := &mockImporter{
		SaveUploadFunc: func(name string, r io.Reader) (string, error) { return name, nil },
		IngestFileFunc: func(ctx context.Context, path string, meta ingest.Meta) (*ingest.Response, error) {
			scanned <- meta.FileName
			return &ingest.Response{}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewService(cfg, importer).Run(ctx)
		close(done)
	}()

	select {
	case name := <-scanned:
		assert.Equal(t, "week1.xml", name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the initial scan")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestService_RunWithoutInbox(t *testing.T) {
	service := NewService(&config.Config{}, nil)
	service.Run(context.Background()) // returns immediately
}
