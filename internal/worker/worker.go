// Package worker runs the per-frame recording pipeline: every stepped
// frame is flushed to the archive backend and, when configured, to
// live telemetry.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/influx"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/session"
	"github.com/apexrush/simulation/internal/storage"
)

// Dependencies holds the recording pipeline's collaborators. Influx is
// optional; nil disables telemetry.
type Dependencies struct {
	Backend storage.Backend
	Influx  *influx.Manager
	Session *session.Context
	Log     *slog.Logger
}

// Manager flushes frames into the archive.
type Manager struct {
	deps Dependencies

	frameStride  uint64
	framesSeen   uint64
	lastFlushDur time.Duration
}

// NewManager creates a recording manager. Stride n keeps every n-th
// frame's vehicle states; events are always kept.
func NewManager(deps Dependencies, frameStride uint64) *Manager {
	if frameStride == 0 {
		frameStride = 1
	}
	return &Manager{deps: deps, frameStride: frameStride}
}

// Flush records one stepped frame. stepDur is how long the simulation
// step took, kept for loop-health monitoring.
func (m *Manager) Flush(snap race.Snapshot, events []core.Event, stepDur time.Duration) error {
	start := time.Now()
	m.framesSeen++

	if (m.framesSeen-1)%m.frameStride == 0 {
		if err := m.deps.Backend.RecordFrame(snap); err != nil {
			return fmt.Errorf("failed to record frame %d: %w", snap.Frame, err)
		}
	}

	if len(events) > 0 {
		if err := m.deps.Backend.RecordEvents(snap.Frame, snap.Elapsed, events); err != nil {
			return fmt.Errorf("failed to record events for frame %d: %w", snap.Frame, err)
		}
		m.shipEventTelemetry(snap.Frame, events)
	}

	m.lastFlushDur = time.Since(start)
	m.recordPerformance(snap, len(events), stepDur)
	return nil
}

// LastFlushDuration returns how long the previous flush took.
func (m *Manager) LastFlushDuration() time.Duration {
	return m.lastFlushDur
}

func (m *Manager) shipEventTelemetry(frame uint64, events []core.Event) {
	if m.deps.Influx == nil {
		return
	}

	sessionID := m.deps.Session.Get().ID
	for _, e := range events {
		point := influx.RaceEventPoint(sessionID, frame, e)
		if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketRaceData, point); err != nil {
			m.deps.Log.Debug("failed to ship event telemetry", "error", err)
		}
	}
}

func (m *Manager) recordPerformance(snap race.Snapshot, queueDepth int, stepDur time.Duration) {
	perf := storage.FramePerf{
		Time:            time.Now().UTC(),
		Frame:           snap.Frame,
		QueueDepth:      queueDepth,
		StepDurationMs:  float64(stepDur) / float64(time.Millisecond),
		FlushDurationMs: float64(m.lastFlushDur) / float64(time.Millisecond),
	}

	if rec, ok := m.deps.Backend.(storage.PerformanceRecorder); ok {
		if err := rec.RecordPerformance(perf); err != nil {
			m.deps.Log.Debug("failed to record performance", "error", err)
		}
	}

	if m.deps.Influx != nil {
		point := influx.FramePerformancePoint(m.deps.Session.Get().ID, perf)
		if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketFramePerformance, point); err != nil {
			m.deps.Log.Debug("failed to ship performance telemetry", "error", err)
		}
	}
}
