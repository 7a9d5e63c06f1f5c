// Package model defines the database schema for archived races.
package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every struct migrated into the archive schema.
var DatabaseModels = []interface{}{
	&InstanceInfo{},
	&RaceRecord{},
	&VehicleFrame{},
	&LapRecord{},
	&RaceEvent{},
	&SaveState{},
	&FramePerformance{},
}

// InstanceInfo identifies the installation that produced the archive.
type InstanceInfo struct {
	gorm.Model
	Name    string `json:"name" gorm:"size:127"`
	Website string `json:"website" gorm:"size:255"`
}

func (*InstanceInfo) TableName() string {
	return "instance_infos"
}

// RaceRecord is one archived race session.
type RaceRecord struct {
	gorm.Model
	SessionID string `json:"sessionId" gorm:"size:36;index:idx_race_session"`
	TrackName string `json:"trackName" gorm:"size:127"`
	// TrackWKT is the spline geometry as well-known text, for replay
	// tooling that redraws the circuit.
	TrackWKT   string    `json:"trackWkt"`
	Laps       int       `json:"laps"`
	Rivals     int       `json:"rivals"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Finished   bool      `json:"finished"`
	PlayerRank int       `json:"playerRank"`
}

func (*RaceRecord) TableName() string {
	return "race_records"
}

// VehicleFrame is one vehicle's state at one recorded frame.
type VehicleFrame struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	RaceID    uint       `json:"raceId" gorm:"index:idx_vehicleframe_race_id"`
	Race      RaceRecord `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RaceID;"`
	Frame     uint64     `json:"frame" gorm:"index:idx_vehicleframe_frame"`
	Elapsed   float64    `json:"elapsed"`
	VehicleID uint16     `json:"vehicleId"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Z         float64    `json:"z"`
	Heading   float64    `json:"heading"`
	Speed     float64    `json:"speed"`
	Drift     float64    `json:"drift"`
	Nitro     float64    `json:"nitro"`
	Health    float64    `json:"health"`
	Progress  float64    `json:"progress"`
	Lap       int        `json:"lap"`
	Rank      int        `json:"rank"`
}

func (*VehicleFrame) TableName() string {
	return "vehicle_frames"
}

// LapRecord is one completed lap.
type LapRecord struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	RaceID      uint       `json:"raceId" gorm:"index:idx_laprecord_race_id"`
	Race        RaceRecord `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RaceID;"`
	VehicleID   uint16     `json:"vehicleId"`
	VehicleName string     `json:"vehicleName" gorm:"size:127"`
	Lap         int        `json:"lap"`
	LapTimeMs   float64    `json:"lapTimeMs"`
	Best        bool       `json:"best"`
}

func (*LapRecord) TableName() string {
	return "lap_records"
}

// RaceEvent is one discrete gameplay event, payload preserved as JSON.
type RaceEvent struct {
	ID      uint           `json:"id" gorm:"primarykey"`
	RaceID  uint           `json:"raceId" gorm:"index:idx_raceevent_race_id"`
	Race    RaceRecord     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RaceID;"`
	Frame   uint64         `json:"frame"`
	Elapsed float64        `json:"elapsed"`
	Kind    string         `json:"kind" gorm:"size:63;index:idx_raceevent_kind"`
	Payload datatypes.JSON `json:"payload"`
}

func (*RaceEvent) TableName() string {
	return "race_events"
}

// SaveState is a resumable race snapshot.
type SaveState struct {
	gorm.Model
	RaceID uint           `json:"raceId" gorm:"index:idx_savestate_race_id"`
	Race   RaceRecord     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RaceID;"`
	Data   datatypes.JSON `json:"data"`
}

func (*SaveState) TableName() string {
	return "save_states"
}

// FramePerformance records loop health for the archive.
type FramePerformance struct {
	Time            time.Time `json:"time" gorm:"index:idx_frameperformance_time"`
	RaceID          uint      `json:"raceId" gorm:"index:idx_frameperformance_race_id"`
	Frame           uint64    `json:"frame"`
	QueueDepth      int       `json:"queueDepth"`
	StepDurationMs  float64   `json:"stepDurationMs"`
	FlushDurationMs float64   `json:"flushDurationMs"`
}

func (*FramePerformance) TableName() string {
	return "frame_performances"
}
