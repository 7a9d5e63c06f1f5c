package handlers

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/database"
	"github.com/apexrush/simulation/internal/dispatcher"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/session"
	"github.com/apexrush/simulation/internal/storage"
	"github.com/apexrush/simulation/internal/storage/gormdb"
	"github.com/apexrush/simulation/internal/track"
)

func mustIntent() core.DriverIntent {
	return core.DriverIntent{Throttle: 1}
}

// stubBackend satisfies storage.Backend without save support.
type stubBackend struct{}

func (stubBackend) Init() error                                      { return nil }
func (stubBackend) Close() error                                     { return nil }
func (stubBackend) StartRace(storage.RaceMeta) error                 { return nil }
func (stubBackend) EndRace(storage.Summary) error                    { return nil }
func (stubBackend) RecordFrame(race.Snapshot) error                  { return nil }
func (stubBackend) RecordEvents(uint64, float64, []core.Event) error { return nil }
func (stubBackend) SaveState(race.SaveGame) error                    { return nil }

func testLayout() *track.Layout {
	points := make([][]float64, 8)
	for i := range points {
		angle := float64(i) / 8 * 2 * math.Pi
		points[i] = []float64{100 * math.Cos(angle), 0, 100 * math.Sin(angle)}
	}
	return &track.Layout{Name: "Handler Ring", Tension: 0.5, ControlPoints: points}
}

func newTestService(t *testing.T, backend storage.Backend) (*Service, *race.Race) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := race.DefaultConfig()
	cfg.Rivals = 1
	r, err := race.New(log, testLayout(), cfg)
	require.NoError(t, err)

	sess := session.NewContext()
	sess.Begin("Handler Ring", cfg.Laps, cfg.Rivals)

	return NewService(Dependencies{
		Race:    r,
		Session: sess,
		Backend: backend,
		Log:     log,
	}), r
}

func newGormBackend(t *testing.T) *gormdb.Backend {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	m.DB = db
	m.IsValid = true

	b := gormdb.New(m, gormdb.Config{})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })

	require.NoError(t, b.StartRace(storage.RaceMeta{
		Session: session.Info{ID: "s-1", TrackName: "Handler Ring"},
	}))
	return b
}

func dispatch(t *testing.T, d *dispatcher.Dispatcher, name string, args ...string) any {
	t.Helper()
	result, err := d.Dispatch(dispatcher.Command{Name: name, Args: args})
	require.NoError(t, err)
	return result
}

func newTestDispatcher(t *testing.T, s *Service) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(SlogLogger{Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	s.RegisterAll(d)
	return d
}

func TestPauseResume(t *testing.T) {
	s, r := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	assert.Equal(t, "paused", dispatch(t, d, "race.pause"))
	assert.True(t, r.Paused())

	assert.Equal(t, "resumed", dispatch(t, d, "race.resume"))
	assert.False(t, r.Paused())
}

func TestReset_RestagesAndStartsNewSession(t *testing.T) {
	s, r := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	before := s.deps.Session.Get().ID
	for i := 0; i < 60; i++ {
		s.Step(1.0 / 60)
	}
	require.Greater(t, r.Elapsed(), 0.0)

	dispatch(t, d, "race.reset")

	assert.Equal(t, 0.0, r.Elapsed())
	assert.NotEqual(t, before, s.deps.Session.Get().ID)
	assert.Equal(t, "Handler Ring", s.deps.Session.Get().TrackName)
}

func TestStatus_ReturnsSnapshot(t *testing.T) {
	s, _ := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	result := dispatch(t, d, "race.status")
	snap, ok := result.(race.Snapshot)
	require.True(t, ok)
	assert.Len(t, snap.Vehicles, 2)
}

func TestIntent_DrivesThePlayer(t *testing.T) {
	s, r := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	// Buffered handler applies asynchronously; keep stepping until
	// the intent lands.
	dispatch(t, d, "player.intent", "1", "0", "0", "false")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.Player().Speed == 0 {
		s.Step(1.0 / 60)
		time.Sleep(time.Millisecond)
	}
	assert.Greater(t, r.Player().Speed, 0.0)
}

func TestIntent_RejectsBadArgs(t *testing.T) {
	s, _ := newTestService(t, newGormBackend(t))

	_, err := s.Intent(dispatcher.Command{Name: "player.intent", Args: []string{"1"}})
	require.Error(t, err)

	_, err = s.Intent(dispatcher.Command{Name: "player.intent", Args: []string{"x", "0", "0", "false"}})
	require.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, r := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	s.deps.Race.SetPlayerIntent(mustIntent())
	for i := 0; i < 120; i++ {
		s.Step(1.0 / 60)
	}
	savedElapsed := r.Elapsed()

	assert.Equal(t, "saved", dispatch(t, d, "race.save"))

	for i := 0; i < 120; i++ {
		s.Step(1.0 / 60)
	}
	require.Greater(t, r.Elapsed(), savedElapsed)

	assert.Equal(t, "loaded", dispatch(t, d, "race.load"))
	assert.InDelta(t, savedElapsed, r.Elapsed(), 1e-9)
}

func TestLoad_MemoryBackendUnsupported(t *testing.T) {
	s, _ := newTestService(t, stubBackend{})

	_, err := s.Load(dispatcher.Command{Name: "race.load"})
	require.ErrorIs(t, err, ErrNoSaveSupport)
}

func TestRespawn(t *testing.T) {
	s, r := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	start := r.Player().Position
	s.deps.Race.SetPlayerIntent(mustIntent())
	for i := 0; i < 300; i++ {
		s.Step(1.0 / 60)
	}
	require.NotEqual(t, start, r.Player().Position)

	dispatch(t, d, "vehicle.respawn")
	assert.InDelta(t, start.X, r.Player().Position.X, 1e-9)
	assert.InDelta(t, start.Z, r.Player().Position.Z, 1e-9)
}

func TestSessionInfo(t *testing.T) {
	s, _ := newTestService(t, newGormBackend(t))
	d := newTestDispatcher(t, s)

	result := dispatch(t, d, "session.info")
	info, ok := result.(session.Info)
	require.True(t, ok)
	assert.Equal(t, "Handler Ring", info.TrackName)
}
