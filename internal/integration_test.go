package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/db"
	"downtime-report-backend/internal/extract"
	"downtime-report-backend/internal/inbox"
	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/model"
	"downtime-report-backend/internal/store"
)

// rejectingStore refuses every batch of incidents, like a database with a stricter schema.
type rejectingStore struct {
	store.Store
}

func (rejectingStore) Persist(context.Context, *extract.Result) (store.PersistStats, error) {
	return store.PersistStats{}, errors.New("value too long for type character varying(64)")
}

func copyFixture(t *testing.T, name, dir, as string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("extract", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, as), data, 0o644))
}

// TestInboxImportLifecycle drops reports of every supported layout into the inbox and
// verifies the stored aggregates, then re-delivers one report and checks nothing is counted twice.
func TestInboxImportLifecycle(t *testing.T) {
	// --- Test Setup ---
	testDB, err := gorm.Open(sqlite.Open("file:inboxlifecycle?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Ingest.UploadDir = t.TempDir()
	cfg.Ingest.InboxDir = t.TempDir()

	gormStore := store.NewGormStore(testDB)
	ingestService := ingest.NewService(cfg, gormStore, nil)
	watcher := inbox.NewService(cfg, ingestService)
	ctx := context.Background()

	for _, name := range []string{"hierarchical.xml", "multi.xml", "flat.xml", "legacy_single_level.xml"} {
		copyFixture(t, name, cfg.Ingest.InboxDir, name)
	}

	// --- Cycle 1: four reports in four layouts ---
	t.Run("Cycle 1: Import Every Layout", func(t *testing.T) {
		assert.Equal(t, 4, watcher.ScanOnce(ctx))

		totals, err := gormStore.Totals(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(6), totals.IncidentCount, "zero-duration incidents are never stored")
		assert.Equal(t, int64(268), totals.TotalDowntime)
		assert.Equal(t, int64(5), totals.MachinesAffected)

		machines, err := gormStore.ListMachines(ctx)
		require.NoError(t, err)
		var codes []string
		for _, m := range machines {
			codes = append(codes, m.Code)
		}
		assert.Equal(t, []string{"L-7", "M1", "UNKNOWN", "W-01", "W-02"}, codes)

		critical, err := gormStore.CriticalIssues(ctx, store.Filter{}, 60, 10)
		require.NoError(t, err)
		assert.Len(t, critical, 2)

		reports, err := gormStore.ListReports(ctx)
		require.NoError(t, err)
		assert.Len(t, reports, 4)

		entries, err := os.ReadDir(filepath.Join(cfg.Ingest.InboxDir, "processed"))
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	// --- Cycle 2: the same report delivered again under another name ---
	t.Run("Cycle 2: Redelivery Is Idempotent", func(t *testing.T) {
		copyFixture(t, "multi.xml", cfg.Ingest.InboxDir, "multi-resent.xml")
		assert.Equal(t, 1, watcher.ScanOnce(ctx))

		totals, err := gormStore.Totals(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(6), totals.IncidentCount)
		assert.Equal(t, int64(268), totals.TotalDowntime)

		var reportCount int64
		testDB.Model(&model.XmlReport{}).Count(&reportCount)
		assert.Equal(t, int64(5), reportCount, "every delivery is recorded")
	})

	// --- Cycle 3: a file that is not XML at all ---
	t.Run("Cycle 3: Unreadable File Is Set Aside", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Ingest.InboxDir, "export.xml"), []byte("machine;minutes\nW-01;30\n"), 0o644))
		assert.Equal(t, 0, watcher.ScanOnce(ctx))
		assert.FileExists(t, filepath.Join(cfg.Ingest.InboxDir, "failed", "export.xml"))

		var reportCount int64
		testDB.Model(&model.XmlReport{}).Count(&reportCount)
		assert.Equal(t, int64(5), reportCount)
	})

	// --- Cycle 4: a store that keeps rejecting the incidents ---
	t.Run("Cycle 4: Rejected Report Is Retried Then Set Aside", func(t *testing.T) {
		rejectCfg := *cfg
		rejectCfg.Ingest.InboxDir = t.TempDir()
		rejectCfg.Ingest.UploadDir = t.TempDir()
		rejecting := inbox.NewService(&rejectCfg, ingest.NewService(&rejectCfg, rejectingStore{Store: gormStore}, nil))
		copyFixture(t, "hierarchical.xml", rejectCfg.Ingest.InboxDir, "rejected.xml")

		for i := 0; i < 3; i++ {
			assert.Equal(t, 0, rejecting.ScanOnce(ctx))
		}
		assert.FileExists(t, filepath.Join(rejectCfg.Ingest.InboxDir, "failed", "rejected.xml"))

		var reportCount int64
		testDB.Model(&model.XmlReport{}).Count(&reportCount)
		assert.Equal(t, int64(5), reportCount, "failed attempts leave no report rows")

		uploads, err := os.ReadDir(rejectCfg.Ingest.UploadDir)
		require.NoError(t, err)
		assert.Empty(t, uploads, "failed attempts leave no upload copies")
	})
}
