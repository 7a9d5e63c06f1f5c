// Package handlers binds control commands to the running race, the
// session context, and the archive backend.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/apexrush/simulation/pkg/core"

	"github.com/apexrush/simulation/internal/dispatcher"
	"github.com/apexrush/simulation/internal/race"
	"github.com/apexrush/simulation/internal/session"
	"github.com/apexrush/simulation/internal/storage"
)

// ErrNoSaveSupport is returned by race.load when the configured
// backend cannot return saved snapshots.
var ErrNoSaveSupport = errors.New("storage backend does not support loading saves")

// Dependencies holds the collaborators commands act on.
type Dependencies struct {
	Race    *race.Race
	Session *session.Context
	Backend storage.Backend
	Log     *slog.Logger
}

// Service provides the command handlers. Handlers may run on
// dispatcher goroutines, so race access is serialized here.
type Service struct {
	mu   sync.Mutex
	deps Dependencies
}

// NewService creates a handler service.
func NewService(deps Dependencies) *Service {
	return &Service{deps: deps}
}

// RegisterAll wires every command onto the dispatcher.
func (s *Service) RegisterAll(d *dispatcher.Dispatcher) {
	d.Register("race.pause", s.Pause)
	d.Register("race.resume", s.Resume)
	d.Register("race.reset", s.Reset, dispatcher.Logged())
	d.Register("race.status", s.Status)
	d.Register("race.save", s.Save, dispatcher.Logged())
	d.Register("race.load", s.Load, dispatcher.Logged())
	d.Register("vehicle.respawn", s.Respawn, dispatcher.Logged())
	d.Register("player.intent", s.Intent, dispatcher.Buffered(256))
	d.Register("session.info", s.SessionInfo)
}

// Step advances the race under the same lock the handlers use. The
// main loop drives frames through here so buffered commands cannot
// mutate the race mid-step.
func (s *Service) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Race.Step(dt)
}

// Capture snapshots the frame and drains its events atomically.
func (s *Service) Capture() (race.Snapshot, []core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Race.Snapshot(), s.deps.Race.DrainEvents()
}

// Finished reports whether the player has completed the race.
func (s *Service) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Race.Finished()
}

// Pause handles race.pause.
func (s *Service) Pause(dispatcher.Command) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Race.Pause()
	return "paused", nil
}

// Resume handles race.resume.
func (s *Service) Resume(dispatcher.Command) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Race.Resume()
	return "resumed", nil
}

// Reset handles race.reset: the field restages and the session gets a
// fresh identity.
func (s *Service) Reset(dispatcher.Command) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deps.Race.Reset()
	info := s.deps.Session.Get()
	s.deps.Session.Begin(info.TrackName, info.Laps, info.Rivals)
	s.deps.Log.Info("race reset")
	return "reset", nil
}

// Status handles race.status with a full frame snapshot.
func (s *Service) Status(dispatcher.Command) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Race.Snapshot(), nil
}

// Save handles race.save, persisting a resumable snapshot.
func (s *Service) Save(dispatcher.Command) (any, error) {
	s.mu.Lock()
	sg := s.deps.Race.Save()
	s.mu.Unlock()

	if err := s.deps.Backend.SaveState(sg); err != nil {
		return nil, fmt.Errorf("failed to persist save: %w", err)
	}
	return "saved", nil
}

// Load handles race.load, restoring the latest saved snapshot.
func (s *Service) Load(dispatcher.Command) (any, error) {
	loader, ok := s.deps.Backend.(storage.SaveLoader)
	if !ok {
		return nil, ErrNoSaveSupport
	}

	sg, err := loader.LatestSaveState()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch save: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deps.Race.Load(sg); err != nil {
		return nil, fmt.Errorf("failed to restore save: %w", err)
	}
	s.deps.Log.Info("race restored from save", "elapsed", sg.Elapsed)
	return "loaded", nil
}

// Respawn handles vehicle.respawn for the player.
func (s *Service) Respawn(dispatcher.Command) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Race.RespawnPlayer()
	return "respawned", nil
}

// Intent handles player.intent. Args: throttle, steer, brake, nitro.
func (s *Service) Intent(c dispatcher.Command) (any, error) {
	if len(c.Args) < 4 {
		return nil, fmt.Errorf("player.intent needs 4 args, got %d", len(c.Args))
	}

	throttle, err := strconv.ParseFloat(c.Args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("bad throttle %q: %w", c.Args[0], err)
	}
	steer, err := strconv.ParseFloat(c.Args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("bad steer %q: %w", c.Args[1], err)
	}
	brake, err := strconv.ParseFloat(c.Args[2], 64)
	if err != nil {
		return nil, fmt.Errorf("bad brake %q: %w", c.Args[2], err)
	}
	nitro, err := strconv.ParseBool(c.Args[3])
	if err != nil {
		return nil, fmt.Errorf("bad nitro %q: %w", c.Args[3], err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Race.SetPlayerIntent(core.DriverIntent{
		Throttle:       throttle,
		Steer:          steer,
		Brake:          brake,
		NitroRequested: nitro,
	})
	return "ok", nil
}

// SessionInfo handles session.info.
func (s *Service) SessionInfo(dispatcher.Command) (any, error) {
	return s.deps.Session.Get(), nil
}

// SlogLogger adapts slog to the dispatcher's logger interface.
type SlogLogger struct {
	Log *slog.Logger
}

func (l SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.Log.Debug(msg, keysAndValues...)
}

func (l SlogLogger) Info(msg string, keysAndValues ...any) {
	l.Log.Info(msg, keysAndValues...)
}

func (l SlogLogger) Error(msg string, keysAndValues ...any) {
	l.Log.Error(msg, keysAndValues...)
}
