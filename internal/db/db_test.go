package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/model"
)

func TestInit_SQLiteMigratesTables(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbinit?mode=memory&cache=shared", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	for _, table := range []any{&model.Machine{}, &model.ErrorCode{}, &model.Downtime{}, &model.XmlReport{}, &model.PushSubscription{}} {
		assert.True(t, gormDB.Migrator().HasTable(table))
	}
	assert.True(t, gormDB.Migrator().HasTable("subscription_machine_mapping"))
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
