// Package memory implements the in-memory archive backend: the whole
// race is buffered and exported as one JSON replay file at the end.
package memory

import (
	"sync"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/config"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/storage"
)

// eventRecord pins an event to its frame and race clock.
type eventRecord struct {
	Frame   uint64
	Elapsed float64
	Event   core.Event
}

// Backend buffers race data in memory and exports to JSON on EndRace.
type Backend struct {
	cfg  config.MemoryConfig
	meta storage.RaceMeta

	frames []race.Snapshot
	events []eventRecord

	lastExportPath string
	lastSummary    storage.Summary

	mu sync.RWMutex
}

// New creates a memory backend.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init implements storage.Backend.
func (b *Backend) Init() error {
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	return nil
}

// StartRace resets the buffers for a new race.
func (b *Backend) StartRace(meta storage.RaceMeta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.meta = meta
	b.frames = nil
	b.events = nil
	return nil
}

// EndRace exports the buffered race to disk.
func (b *Backend) EndRace(sum storage.Summary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSummary = sum
	return b.exportJSON(sum)
}

// RecordFrame buffers one frame snapshot.
func (b *Backend) RecordFrame(snap race.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, snap)
	return nil
}

// RecordEvents buffers the frame's drained events.
func (b *Backend) RecordEvents(frame uint64, elapsed float64, events []core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range events {
		b.events = append(b.events, eventRecord{Frame: frame, Elapsed: elapsed, Event: e})
	}
	return nil
}

// SaveState is a no-op for the replay exporter; saves live with the
// database backends.
func (b *Backend) SaveState(race.SaveGame) error {
	return nil
}

// ExportedFilePath implements storage.Uploadable.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata implements storage.Uploadable.
func (b *Backend) ExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	meta := storage.UploadMetadata{
		TrackName: b.meta.Session.TrackName,
		Laps:      b.meta.Session.Laps,
		Finished:  b.lastSummary.Finished,
	}
	if n := len(b.frames); n > 0 {
		meta.DurationSec = b.frames[n-1].Elapsed
	}
	return meta
}
