package spatial

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
)

// JoinStats summarizes one join.
type JoinStats struct {
	Joined       int
	NoLocation   int // buildings without usable coordinates
	MaxDistanceM float64
	MeanDistance float64
	BeyondLimit  int // joined farther than the reporting limit
}

// Join assigns every building with valid coordinates the speeds of its
// nearest grid point. Buildings without coordinates get no assignment and
// are counted. limitM only affects BeyondLimit.
func Join(ix *Index, buildings []domain.Building, limitM float64) ([]domain.WindAssignment, JoinStats) {
	var stats JoinStats
	out := make([]domain.WindAssignment, 0, len(buildings))
	var total float64
	for _, b := range buildings {
		if !validCoordinate(b.Longitude, b.Latitude) {
			stats.NoLocation++
			continue
		}
		p, d := ix.Nearest(b.Longitude, b.Latitude)
		out = append(out, domain.WindAssignment{
			BuildingID: b.ID,
			WindSpeed:  p.WindSpeed,
			GustSpeed:  p.GustSpeed,
			DistanceM:  d,
		})
		total += d
		stats.MaxDistanceM = math.Max(stats.MaxDistanceM, d)
		if d > limitM {
			stats.BeyondLimit++
		}
	}
	stats.Joined = len(out)
	if stats.Joined > 0 {
		stats.MeanDistance = total / float64(stats.Joined)
	}
	return out, stats
}

func validCoordinate(lon, lat float64) bool {
	return !math.IsNaN(lon) && !math.IsNaN(lat) && lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

var joinedColumns = []string{"fd_id", "Wind_Speed", "Gust_Wind_Speed", "distance"}

// WriteAssignments writes the joined table for one scenario.
func WriteAssignments(path string, assignments []domain.WindAssignment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create joined output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create joined table: %w", err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(joinedColumns); err != nil {
		f.Close()
		return err
	}
	for _, a := range assignments {
		if err := cw.Write([]string{
			a.BuildingID,
			strconv.FormatFloat(a.WindSpeed, 'g', -1, 64),
			strconv.FormatFloat(a.GustSpeed, 'g', -1, 64),
			strconv.FormatFloat(a.DistanceM, 'g', -1, 64),
		}); err != nil {
			f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write joined table %s: %w", path, err)
	}
	return f.Close()
}

// ReadAssignments loads a joined table. Rows with a blank gust speed are
// buildings the join could not place and are left out.
func ReadAssignments(path string) ([]domain.WindAssignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open joined table: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("joined table %s: read header: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, c := range joinedColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("joined table %s: missing column %q", path, c)
		}
	}

	var out []domain.WindAssignment
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("joined table %s line %d: %w", path, line, err)
		}
		if strings.TrimSpace(rec[index["Gust_Wind_Speed"]]) == "" {
			continue
		}
		a := domain.WindAssignment{BuildingID: rec[index["fd_id"]]}
		for _, fld := range []struct {
			col string
			dst *float64
		}{
			{"Wind_Speed", &a.WindSpeed},
			{"Gust_Wind_Speed", &a.GustSpeed},
			{"distance", &a.DistanceM},
		} {
			if *fld.dst, err = strconv.ParseFloat(strings.TrimSpace(rec[index[fld.col]]), 64); err != nil {
				return nil, fmt.Errorf("joined table %s line %d: %s: %w", path, line, fld.col, err)
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// GustByBuilding indexes gust speeds by building ID. A building listed
// twice keeps its first assignment.
func GustByBuilding(assignments []domain.WindAssignment) map[string]float64 {
	m := make(map[string]float64, len(assignments))
	for _, a := range assignments {
		if _, ok := m[a.BuildingID]; !ok {
			m[a.BuildingID] = a.GustSpeed
		}
	}
	return m
}
