// Package inventory reads and writes the NSI building inventory CSV.
package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
)

// Load reads the inventory at path.
func Load(path string, cols config.InventoryColumns) ([]domain.Building, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	buildings, err := Read(f, cols)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	return buildings, nil
}

// Read parses an NSI inventory. The construction type column is optional;
// every other configured column must be present. County FIPS is derived
// from the census block code. A blank roughness cell is read as NaN and
// later clamped by terrain classification; blank values are zero.
// Building IDs must be unique since they seed the per-building streams.
func Read(r io.Reader, cols config.InventoryColumns) ([]domain.Building, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty inventory")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	required := []string{cols.ID, cols.BlockFIPS, cols.Occupancy, cols.Longitude, cols.Latitude,
		cols.SurfaceRoughness, cols.StructureValue, cols.ContentsValue}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	ctCol, hasCT := index[cols.ConstructionType]

	var buildings []domain.Building
	seen := make(map[string]int)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(name string) string {
			return strings.TrimSpace(rec[index[name]])
		}

		b := domain.Building{
			ID:            get(cols.ID),
			BlockFIPS:     get(cols.BlockFIPS),
			OccupancyType: get(cols.Occupancy),
		}
		if b.ID == "" {
			return nil, fmt.Errorf("line %d: empty building id", line)
		}
		if first, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("line %d: building id %s already on line %d", line, b.ID, first)
		}
		seen[b.ID] = line
		b.CountyFIPS = domain.CountyFromBlock(b.BlockFIPS)
		if hasCT {
			b.ConstructionType = domain.ConstructionType(strings.ToUpper(strings.TrimSpace(rec[ctCol])))
		}

		fields := []struct {
			name  string
			dst   *float64
			blank float64
		}{
			{cols.Longitude, &b.Longitude, math.NaN()},
			{cols.Latitude, &b.Latitude, math.NaN()},
			{cols.SurfaceRoughness, &b.SurfaceRoughness, math.NaN()},
			{cols.StructureValue, &b.StructureValue, 0},
			{cols.ContentsValue, &b.ContentsValue, 0},
		}
		for _, f := range fields {
			raw := get(f.name)
			if raw == "" {
				*f.dst = f.blank
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %q: invalid number %q", line, f.name, raw)
			}
			*f.dst = v
		}
		buildings = append(buildings, b)
	}
	return buildings, nil
}

// Save writes buildings as an NSI-style CSV using the configured columns.
func Save(path string, cols config.InventoryColumns, buildings []domain.Building) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create inventory: %w", err)
	}
	if err := Write(f, cols, buildings); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes buildings as CSV.
func Write(w io.Writer, cols config.InventoryColumns, buildings []domain.Building) error {
	cw := csv.NewWriter(w)
	header := []string{cols.ID, cols.BlockFIPS, cols.Occupancy, cols.ConstructionType, cols.Longitude,
		cols.Latitude, cols.SurfaceRoughness, cols.StructureValue, cols.ContentsValue}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write inventory header: %w", err)
	}
	for _, b := range buildings {
		rec := []string{
			b.ID,
			b.BlockFIPS,
			b.OccupancyType,
			string(b.ConstructionType),
			formatFloat(b.Longitude),
			formatFloat(b.Latitude),
			formatFloat(b.SurfaceRoughness),
			formatFloat(b.StructureValue),
			formatFloat(b.ContentsValue),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write building %s: %w", b.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
