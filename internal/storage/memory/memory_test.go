package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexrush/simulation/internal/config"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/session"
	"github.com/apexrush/simulation/internal/storage"
	"github.com/apexrush/simulation/pkg/core"
)

func testMeta() storage.RaceMeta {
	return storage.RaceMeta{
		Session: session.Info{
			ID:        "s-1",
			TrackName: "Harbor Loop",
			Laps:      3,
			Rivals:    2,
			StartTime: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		},
		TrackWKT: "LINESTRING (0 0, 10 0)",
	}
}

func testSnap(frame uint64, elapsed float64) race.Snapshot {
	return race.Snapshot{
		Frame:   frame,
		Elapsed: elapsed,
		Vehicles: []core.VehicleSnapshot{
			{ID: 0, Name: "Player", IsPlayer: true, Position: core.Vec3{X: float64(frame), Z: 2}, Speed: 10, Health: 100, Lap: 0, Rank: 1},
			{ID: 1, Name: "Rival 1", Position: core.Vec3{X: float64(frame) - 5, Z: -2}, Speed: 9, Health: 100, Lap: 0, Rank: 2},
		},
		Props: []race.PropState{
			{ID: 0, Position: core.Vec3{X: 30}, Hit: frame > 0, Score: 50},
		},
	}
}

func recordRace(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.StartRace(testMeta()))
	for f := uint64(0); f < 3; f++ {
		require.NoError(t, b.RecordFrame(testSnap(f, float64(f)/60)))
	}
	require.NoError(t, b.RecordEvents(1, 1.0/60, []core.Event{
		{Kind: core.EventCollision, VehicleID: 0, OtherID: 1, Impulse: 12},
		{Kind: core.EventLapCompleted, VehicleID: 1, Lap: 1},
	}))
}

func decodeExport(t *testing.T, path string, compressed bool) ReplayExport {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var export ReplayExport
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		require.NoError(t, json.NewDecoder(gz).Decode(&export))
	} else {
		require.NoError(t, json.NewDecoder(f).Decode(&export))
	}
	return export
}

func TestEndRace_WritesGzipReplay(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())
	recordRace(t, b)

	require.NoError(t, b.EndRace(storage.Summary{Finished: true, PlayerRank: 1}))

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Harbor_Loop_20240601_123000.json.gz"), path)

	export := decodeExport(t, path, true)
	assert.Equal(t, "s-1", export.SessionID)
	assert.Equal(t, "Harbor Loop", export.TrackName)
	assert.Equal(t, "LINESTRING (0 0, 10 0)", export.TrackWKT)
	assert.Equal(t, 3, export.Laps)
	assert.Equal(t, 2, export.Rivals)
	assert.True(t, export.Finished)
	assert.Equal(t, 1, export.PlayerRank)
	assert.Equal(t, uint64(2), export.EndFrame)

	require.Len(t, export.Entities, 2)
	assert.Equal(t, "Player", export.Entities[0].Name)
	assert.Equal(t, 1, export.Entities[0].IsPlayer)
	assert.Len(t, export.Entities[0].Positions, 3)
	assert.Equal(t, "Rival 1", export.Entities[1].Name)
	assert.Equal(t, 0, export.Entities[1].IsPlayer)

	require.Len(t, export.Props, 1)
	require.Len(t, export.Events, 2)
	assert.Equal(t, "collision", export.Events[0][1])
	assert.Equal(t, "lap_completed", export.Events[1][1])
}

func TestEndRace_WritesPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	recordRace(t, b)

	require.NoError(t, b.EndRace(storage.Summary{}))

	path := b.ExportedFilePath()
	assert.Equal(t, ".json", filepath.Ext(path))

	export := decodeExport(t, path, false)
	assert.False(t, export.Finished)
	assert.Len(t, export.Entities, 2)
}

func TestEndRace_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "races")
	b := New(config.MemoryConfig{OutputDir: dir})
	recordRace(t, b)

	require.NoError(t, b.EndRace(storage.Summary{}))

	_, err := os.Stat(b.ExportedFilePath())
	require.NoError(t, err)
}

func TestStartRace_ResetsBuffers(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	recordRace(t, b)

	// Second race with no frames recorded.
	meta := testMeta()
	meta.Session.TrackName = "Second Run"
	meta.Session.StartTime = meta.Session.StartTime.Add(time.Hour)
	require.NoError(t, b.StartRace(meta))
	require.NoError(t, b.EndRace(storage.Summary{}))

	export := decodeExport(t, b.ExportedFilePath(), false)
	assert.Equal(t, "Second Run", export.TrackName)
	assert.Empty(t, export.Entities)
	assert.Empty(t, export.Events)
}

func TestExportMetadata(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true})
	recordRace(t, b)
	require.NoError(t, b.EndRace(storage.Summary{Finished: true, PlayerRank: 2}))

	meta := b.ExportMetadata()
	assert.Equal(t, "Harbor Loop", meta.TrackName)
	assert.Equal(t, 3, meta.Laps)
	assert.True(t, meta.Finished)
	assert.InDelta(t, 2.0/60, meta.DurationSec, 1e-9)
}
