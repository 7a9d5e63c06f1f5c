// Package gormdb implements the storage.Backend interface over a gorm
// connection with internal queues and a background writer goroutine.
// The same backend serves PostgreSQL and SQLite; the in-memory SQLite
// flavor additionally dumps itself to disk on an interval.
package gormdb

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/database"
	"github.com/apexrush/simulation/internal/model"
	"github.com/apexrush/simulation/internal/queue"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/storage"
)

const writeInterval = 2 * time.Second

// queues holds the write queues drained in batches by the DB writer.
type queues struct {
	Frames      *queue.Queue[model.VehicleFrame]
	Events      *queue.Queue[model.RaceEvent]
	Laps        *queue.Queue[model.LapRecord]
	Performance *queue.Queue[model.FramePerformance]
}

func newQueues() *queues {
	return &queues{
		Frames:      queue.New[model.VehicleFrame](),
		Events:      queue.New[model.RaceEvent](),
		Laps:        queue.New[model.LapRecord](),
		Performance: queue.New[model.FramePerformance](),
	}
}

// Config tunes the gorm backend.
type Config struct {
	// DumpInterval enables periodic VACUUM INTO dumps when the
	// manager runs on the in-memory SQLite database.
	DumpInterval time.Duration
}

// Backend implements storage.Backend using gorm with queue-based
// batch writes.
type Backend struct {
	mgr      *database.Manager
	cfg      Config
	queues   *queues
	raceID   atomic.Uint64
	stopChan chan struct{}
	dbReady  bool
}

// New creates a gorm storage backend over an established manager.
func New(mgr *database.Manager, cfg Config) *Backend {
	return &Backend{mgr: mgr, cfg: cfg}
}

// Init migrates the schema and starts the writer goroutine. The
// manager must already be connected.
func (b *Backend) Init() error {
	if b.mgr == nil || b.mgr.DB == nil {
		return fmt.Errorf("gorm backend requires a connected database manager")
	}

	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if err := b.mgr.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true

	go b.writerLoop()
	if b.cfg.DumpInterval > 0 && b.mgr.ShouldSaveLocal && b.mgr.SqliteFilePath != "" {
		go b.dumpLoop()
	}
	return nil
}

// Close stops the writer goroutine and the connection pool.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return b.mgr.Close()
}

// StartRace creates the race row and remembers its ID for the writer.
func (b *Backend) StartRace(meta storage.RaceMeta) error {
	record := model.RaceRecord{
		SessionID: meta.Session.ID,
		TrackName: meta.Session.TrackName,
		TrackWKT:  meta.TrackWKT,
		Laps:      meta.Session.Laps,
		Rivals:    meta.Session.Rivals,
		StartTime: meta.Session.StartTime,
	}
	if err := b.mgr.DB.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert race record: %w", err)
	}
	b.raceID.Store(uint64(record.ID))
	return nil
}

// EndRace flushes pending writes and closes out the race row.
func (b *Backend) EndRace(sum storage.Summary) error {
	b.flush()

	endTime := sum.EndTime
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	updates := map[string]interface{}{
		"end_time":    endTime,
		"finished":    sum.Finished,
		"player_rank": sum.PlayerRank,
	}
	err := b.mgr.DB.Model(&model.RaceRecord{}).
		Where("id = ?", uint(b.raceID.Load())).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to close race record: %w", err)
	}

	if b.mgr.ShouldSaveLocal && b.mgr.SqliteFilePath != "" {
		if err := b.mgr.DumpMemoryToDisk(); err != nil {
			return fmt.Errorf("failed to dump race archive: %w", err)
		}
	}
	return nil
}

// RecordFrame queues one row per vehicle in the snapshot.
func (b *Backend) RecordFrame(snap race.Snapshot) error {
	for _, vs := range snap.Vehicles {
		b.queues.Frames.Push(model.VehicleFrame{
			Frame:     snap.Frame,
			Elapsed:   snap.Elapsed,
			VehicleID: vs.ID,
			X:         vs.Position.X,
			Y:         vs.Position.Y,
			Z:         vs.Position.Z,
			Heading:   vs.Heading,
			Speed:     vs.Speed,
			Drift:     vs.Drift,
			Nitro:     vs.Nitro,
			Health:    vs.Health,
			Progress:  vs.Progress,
			Lap:       vs.Lap,
			Rank:      vs.Rank,
		})
	}
	return nil
}

// RecordEvents queues the frame's events; completed laps additionally
// become lap rows.
func (b *Backend) RecordEvents(frame uint64, elapsed float64, events []core.Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
		b.queues.Events.Push(model.RaceEvent{
			Frame:   frame,
			Elapsed: elapsed,
			Kind:    e.Kind.String(),
			Payload: datatypes.JSON(payload),
		})

		if e.Kind == core.EventLapCompleted {
			b.queues.Laps.Push(model.LapRecord{
				VehicleID: e.VehicleID,
				Lap:       e.Lap,
				LapTimeMs: float64(e.LapTime) / float64(time.Millisecond),
			})
		}
	}
	return nil
}

// SaveState writes a resumable snapshot synchronously so a crash right
// after saving cannot lose it.
func (b *Backend) SaveState(sg race.SaveGame) error {
	data, err := json.Marshal(sg)
	if err != nil {
		return fmt.Errorf("failed to encode save state: %w", err)
	}
	state := model.SaveState{
		RaceID: uint(b.raceID.Load()),
		Data:   datatypes.JSON(data),
	}
	if err := b.mgr.DB.Create(&state).Error; err != nil {
		return fmt.Errorf("failed to insert save state: %w", err)
	}
	return nil
}

// LatestSaveState returns the most recent resumable snapshot for the
// current race.
func (b *Backend) LatestSaveState() (race.SaveGame, error) {
	var state model.SaveState
	err := b.mgr.DB.
		Where("race_id = ?", uint(b.raceID.Load())).
		Order("id DESC").
		First(&state).Error
	if err != nil {
		return race.SaveGame{}, fmt.Errorf("failed to load save state: %w", err)
	}

	var sg race.SaveGame
	if err := json.Unmarshal(state.Data, &sg); err != nil {
		return race.SaveGame{}, fmt.Errorf("failed to decode save state: %w", err)
	}
	return sg, nil
}

// RecordPerformance implements storage.PerformanceRecorder.
func (b *Backend) RecordPerformance(p storage.FramePerf) error {
	b.queues.Performance.Push(model.FramePerformance{
		Time:            p.Time,
		Frame:           p.Frame,
		QueueDepth:      p.QueueDepth,
		StepDurationMs:  p.StepDurationMs,
		FlushDurationMs: p.FlushDurationMs,
	})
	return nil
}

// writeQueue writes all items from a queue to the database in a
// transaction, requeueing them on failure.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, mgr *database.Manager, prepare func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		mgr.Logger.Error().Err(err).Str("queue", name).Msg("Failed to write batch")
		tx.Rollback()
		q.Push(items...)
		return
	}
	tx.Commit()
}

// flush drains every queue into the database once.
func (b *Backend) flush() {
	raceID := uint(b.raceID.Load())

	stampFrames := func(items []model.VehicleFrame) {
		for i := range items {
			items[i].RaceID = raceID
		}
	}
	stampEvents := func(items []model.RaceEvent) {
		for i := range items {
			items[i].RaceID = raceID
		}
	}
	stampLaps := func(items []model.LapRecord) {
		for i := range items {
			items[i].RaceID = raceID
		}
	}
	stampPerformance := func(items []model.FramePerformance) {
		for i := range items {
			items[i].RaceID = raceID
		}
	}

	writeQueue(b.mgr.DB, b.queues.Frames, "vehicle frames", b.mgr, stampFrames)
	writeQueue(b.mgr.DB, b.queues.Events, "race events", b.mgr, stampEvents)
	writeQueue(b.mgr.DB, b.queues.Laps, "lap records", b.mgr, stampLaps)
	writeQueue(b.mgr.DB, b.queues.Performance, "frame performances", b.mgr, stampPerformance)
}

// writerLoop periodically drains the queues into the database.
func (b *Backend) writerLoop() {
	for {
		select {
		case <-b.stopChan:
			return
		default:
		}

		if !b.dbReady {
			time.Sleep(1 * time.Second)
			continue
		}

		b.flush()
		time.Sleep(writeInterval)
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk.
// VACUUM INTO takes a point-in-time snapshot, so writes keep flowing.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.mgr.DumpMemoryToDisk(); err != nil {
				b.mgr.Logger.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.mgr.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped archive to disk")
			}
		}
	}
}
