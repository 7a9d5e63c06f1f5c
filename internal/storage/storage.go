// Package storage defines the archive backend interface and its
// factory. A backend receives the frame stream of a running race and
// persists it for replay tooling.
package storage

import (
	"time"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/session"
)

// RaceMeta describes the race being archived.
type RaceMeta struct {
	Session  session.Info
	TrackWKT string
}

// Summary closes out an archived race.
type Summary struct {
	Finished   bool
	PlayerRank int
	EndTime    time.Time
}

// Backend is the interface all archive implementations satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Race management
	StartRace(meta RaceMeta) error
	EndRace(sum Summary) error

	// Stream recording
	RecordFrame(snap race.Snapshot) error
	RecordEvents(frame uint64, elapsed float64, events []core.Event) error

	// Resumable saves
	SaveState(sg race.SaveGame) error
}

// SaveLoader is an optional interface for backends that can return the
// most recent resumable snapshot.
type SaveLoader interface {
	LatestSaveState() (race.SaveGame, error)
}

// FramePerf is one loop-health sample from the recording pipeline.
type FramePerf struct {
	Time            time.Time
	Frame           uint64
	QueueDepth      int
	StepDurationMs  float64
	FlushDurationMs float64
}

// PerformanceRecorder is an optional interface for backends that keep
// loop-health samples alongside the race archive.
type PerformanceRecorder interface {
	RecordPerformance(p FramePerf) error
}

// UploadMetadata accompanies an exported replay file.
type UploadMetadata struct {
	TrackName   string
	Laps        int
	DurationSec float64
	Finished    bool
}

// Uploadable is an optional interface for backends that produce replay
// files suitable for upload to the results service.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() UploadMetadata
}
