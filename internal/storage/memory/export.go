package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apexrush/simulation/internal/storage"
)

// ReplayExport is the root JSON structure of an exported race.
type ReplayExport struct {
	SessionID  string       `json:"sessionId"`
	TrackName  string       `json:"trackName"`
	TrackWKT   string       `json:"trackWkt"`
	Laps       int          `json:"laps"`
	Rivals     int          `json:"rivals"`
	EndFrame   uint64       `json:"endFrame"`
	Duration   float64      `json:"duration"`
	Finished   bool         `json:"finished"`
	PlayerRank int          `json:"playerRank"`
	Entities   []EntityJSON `json:"entities"`
	Props      [][]any      `json:"props"`
	Events     [][]any      `json:"events"`
}

// EntityJSON is one vehicle's timeline.
type EntityJSON struct {
	ID        uint16  `json:"id"`
	Name      string  `json:"name"`
	IsPlayer  int     `json:"isPlayer"`
	Positions [][]any `json:"positions"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// exportJSON writes the buffered race to a (optionally gzipped) JSON
// replay file. Caller holds the lock.
func (b *Backend) exportJSON(sum storage.Summary) error {
	export := b.buildExport(sum)

	trackName := strings.ReplaceAll(b.meta.Session.TrackName, " ", "_")
	trackName = strings.ReplaceAll(trackName, ":", "_")
	timestamp := b.meta.Session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", trackName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", trackName, timestamp)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(sum storage.Summary) ReplayExport {
	export := ReplayExport{
		SessionID:  b.meta.Session.ID,
		TrackName:  b.meta.Session.TrackName,
		TrackWKT:   b.meta.TrackWKT,
		Laps:       b.meta.Session.Laps,
		Rivals:     b.meta.Session.Rivals,
		Finished:   sum.Finished,
		PlayerRank: sum.PlayerRank,
		Entities:   make([]EntityJSON, 0),
		Props:      make([][]any, 0),
		Events:     make([][]any, 0),
	}

	// One entity per vehicle, positions in frame order.
	// Position entry: [[x,y,z], heading, speed, drift, nitro, health,
	// progress, lap, rank]
	byID := make(map[uint16]*EntityJSON)
	var order []uint16
	for _, snap := range b.frames {
		if snap.Frame > export.EndFrame {
			export.EndFrame = snap.Frame
		}
		if snap.Elapsed > export.Duration {
			export.Duration = snap.Elapsed
		}
		for _, vs := range snap.Vehicles {
			ent, ok := byID[vs.ID]
			if !ok {
				ent = &EntityJSON{
					ID:        vs.ID,
					Name:      vs.Name,
					IsPlayer:  boolToInt(vs.IsPlayer),
					Positions: make([][]any, 0, len(b.frames)),
				}
				byID[vs.ID] = ent
				order = append(order, vs.ID)
			}
			ent.Positions = append(ent.Positions, []any{
				[]float64{vs.Position.X, vs.Position.Y, vs.Position.Z},
				vs.Heading,
				vs.Speed,
				vs.Drift,
				vs.Nitro,
				vs.Health,
				vs.Progress,
				vs.Lap,
				vs.Rank,
			})
		}
	}
	for _, id := range order {
		export.Entities = append(export.Entities, *byID[id])
	}

	// Final prop states from the last frame.
	// Format: [id, [x,y,z], hit, score]
	if n := len(b.frames); n > 0 {
		for _, p := range b.frames[n-1].Props {
			export.Props = append(export.Props, []any{
				p.ID,
				[]float64{p.Position.X, p.Position.Y, p.Position.Z},
				boolToInt(p.Hit),
				p.Score,
			})
		}
	}

	// Event format: [frameNum, kind, vehicleId, payload]
	for _, rec := range b.events {
		export.Events = append(export.Events, []any{
			rec.Frame,
			rec.Event.Kind.String(),
			rec.Event.VehicleID,
			rec.Event,
		})
	}

	return export
}

func writeJSON(path string, export ReplayExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, export ReplayExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gz.Close()
}
