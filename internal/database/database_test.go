package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexrush/simulation/internal/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	m.DB = db
	m.IsValid = true
	m.ShouldSaveLocal = true
	return m
}

func TestSetup_MigratesSchemaAndSeedsInstance(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Setup())

	for _, mdl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(mdl), "missing table for %T", mdl)
	}

	var info model.InstanceInfo
	require.NoError(t, m.DB.First(&info).Error)
	assert.Equal(t, "apexrush", info.Name)
}

func TestSetup_IsIdempotent(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Setup())
	require.NoError(t, m.Setup())

	var count int64
	require.NoError(t, m.DB.Model(&model.InstanceInfo{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRaceRecordRoundTrip(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Setup())

	rec := model.RaceRecord{
		SessionID: "s-1",
		TrackName: "Harbor Loop",
		Laps:      3,
		Rivals:    5,
		StartTime: time.Now().UTC(),
	}
	require.NoError(t, m.DB.Create(&rec).Error)
	require.NotZero(t, rec.ID)

	lap := model.LapRecord{RaceID: rec.ID, VehicleID: 1, VehicleName: "Player", Lap: 1, LapTimeMs: 31250, Best: true}
	require.NoError(t, m.DB.Create(&lap).Error)

	var got model.RaceRecord
	require.NoError(t, m.DB.First(&got, rec.ID).Error)
	assert.Equal(t, "Harbor Loop", got.TrackName)

	var laps []model.LapRecord
	require.NoError(t, m.DB.Where("race_id = ?", rec.ID).Find(&laps).Error)
	require.Len(t, laps, 1)
	assert.True(t, laps[0].Best)
}

func TestDumpMemoryToDisk_RequiresPath(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Setup())
	assert.Error(t, m.DumpMemoryToDisk())
}
