package domain

import "time"

// LossRecord is the loss estimate for one building under one scenario.
type LossRecord struct {
	BuildingID     string
	CountyFIPS     string
	WBID           string
	TerrainID      int
	WindSpeed      float64 // gust, mph
	StructureRatio float64
	ContentsRatio  float64
	StructureLoss  float64
	ContentsLoss   float64
}

// CountyTotal sums one scenario's losses within a county.
type CountyTotal struct {
	Scenario      string
	CountyFIPS    string
	Buildings     int
	StructureLoss float64
	ContentsLoss  float64
}

// Total returns structure plus contents loss.
func (c CountyTotal) Total() float64 { return c.StructureLoss + c.ContentsLoss }

// ScenarioTotal sums all of a scenario's losses.
type ScenarioTotal struct {
	Scenario      string
	Buildings     int
	StructureLoss float64
	ContentsLoss  float64
	TotalLoss     float64
}

// WindAssignment is the gust wind speed assigned to a building for one scenario.
type WindAssignment struct {
	BuildingID string
	WindSpeed  float64 // sustained, mph
	GustSpeed  float64 // 3-second gust, mph
	DistanceM  float64 // to the nearest wind grid point
}

// RunStatus is a point-in-time view of a running pipeline.
type RunStatus struct {
	RunID                  string    `json:"run_id"`
	Stage                  string    `json:"stage"`
	Scenario               string    `json:"scenario,omitempty"`
	BuildingsCharacterized int64     `json:"buildings_characterized"`
	BuildingsTotal         int       `json:"buildings_total"`
	StartedAt              time.Time `json:"started_at"`
	Done                   bool      `json:"done"`
}
