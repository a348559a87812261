package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
)

// Manifest records what a run did, next to its results.
type Manifest struct {
	RunID            string           `json:"run_id"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	Seed             uint64           `json:"seed"`
	Workers          int              `json:"workers"`
	Steps            []int            `json:"steps"`
	Scenarios        []string         `json:"scenarios"`
	Buildings        int              `json:"buildings"`
	Checkpoint       string           `json:"checkpoint,omitempty"`
	CheckpointReused bool             `json:"checkpoint_reused"`
	Results          []ScenarioResult `json:"results,omitempty"`
}

// ScenarioResult is one scenario's line in the manifest.
type ScenarioResult struct {
	Total        domain.ScenarioTotal `json:"total"`
	WithoutWind  int                  `json:"buildings_without_wind"`
	Counties     int                  `json:"counties"`
	LossesReused bool                 `json:"losses_reused"`
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode run manifest %s: %w", path, err)
	}
	return &m, nil
}

// ParseSteps parses a comma-separated step list such as "1,2,3". Duplicates
// are dropped and the result is sorted.
func ParseSteps(s string) ([]int, error) {
	var steps []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < StepWindField || n > StepLoss {
			return nil, fmt.Errorf("invalid step %q: must be %d, %d or %d", part, StepWindField, StepSpatial, StepLoss)
		}
		if !slices.Contains(steps, n) {
			steps = append(steps, n)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps in %q", s)
	}
	slices.Sort(steps)
	return steps, nil
}

// Output layout.

// RawWindPath is the raw swath export of a scenario.
func RawWindPath(windDir, scenario string) string {
	return filepath.Join(windDir, scenario+".csv")
}

func ProcessedWindPath(outputDir, scenario string) string {
	return filepath.Join(outputDir, "processed_wind", scenario+".csv")
}

func JoinedPath(outputDir, scenario string) string {
	return filepath.Join(outputDir, "joined_data", scenario, scenario+".csv")
}

// CheckpointPath is the default location of the characterized inventory.
func CheckpointPath(outputDir string) string {
	return filepath.Join(outputDir, "building_inventory", "nsi_wbId_sr.csv")
}

func ResultsDir(outputDir, scenario string) string {
	return filepath.Join(outputDir, "results", scenario)
}

func TotalLossPath(outputDir string) string {
	return filepath.Join(outputDir, "results", "TotalLoss.csv")
}

func ManifestPath(outputDir string) string {
	return filepath.Join(outputDir, "results", "run_manifest.json")
}
