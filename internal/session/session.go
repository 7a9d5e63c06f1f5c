// Package session tracks the identity of the currently staged race.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Info describes one staged race session.
type Info struct {
	ID        string    `json:"id"`
	TrackName string    `json:"trackName"`
	Laps      int       `json:"laps"`
	Rivals    int       `json:"rivals"`
	StartTime time.Time `json:"startTime"`
}

// Context holds the active session. Safe for concurrent reads from
// telemetry and recording collaborators.
type Context struct {
	mu   sync.RWMutex
	info Info
}

// NewContext creates a context with a placeholder session.
func NewContext() *Context {
	return &Context{
		info: Info{ID: uuid.NewString(), TrackName: "No track loaded", StartTime: time.Now().UTC()},
	}
}

// Get returns the active session.
func (c *Context) Get() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Begin installs a new session for a freshly staged race and returns
// it.
func (c *Context) Begin(trackName string, laps, rivals int) Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = Info{
		ID:        uuid.NewString(),
		TrackName: trackName,
		Laps:      laps,
		Rivals:    rivals,
		StartTime: time.Now().UTC(),
	}
	return c.info
}
