package loss

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
	"github.com/shopspring/decimal"
)

// Output file names inside the results directory.
const (
	LossesFile       = "Losses.csv"
	CountyLossesFile = "CountyLosses.csv"
	TotalLossFile    = "TotalLoss.csv"
)

var (
	lossColumns   = []string{"fd_id", "countyFIPS", "wbID", "terrainID", "Wind_Speed", "Building_Loss", "Contents_Loss"}
	countyColumns = []string{"cfips", "Buildings", "Building_Loss", "Contents_Loss", "Total_Loss"}
	totalColumns  = []string{"Scenario", "Building", "Contents", "Total"}
)

// WriteLosses writes per-building loss records.
func WriteLosses(path string, records []domain.LossRecord) error {
	return writeCSV(path, lossColumns, func(cw *csv.Writer) error {
		for _, r := range records {
			if err := cw.Write([]string{
				r.BuildingID,
				r.CountyFIPS,
				r.WBID,
				strconv.Itoa(r.TerrainID),
				formatFloat(r.WindSpeed),
				formatFloat(r.StructureLoss),
				formatFloat(r.ContentsLoss),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadLosses reads a file written by WriteLosses. Ratios are not stored
// and come back as zero. Speeds and losses must be finite and non-negative.
func ReadLosses(path string) ([]domain.LossRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open losses: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("losses %s: read header: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, c := range lossColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("losses %s: missing column %q", path, c)
		}
	}

	var records []domain.LossRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("losses %s line %d: %w", path, line, err)
		}
		r := domain.LossRecord{
			BuildingID: rec[index["fd_id"]],
			CountyFIPS: rec[index["countyFIPS"]],
			WBID:       rec[index["wbID"]],
		}
		if r.TerrainID, err = strconv.Atoi(rec[index["terrainID"]]); err != nil {
			return nil, fmt.Errorf("losses %s line %d: terrainID: %w", path, line, err)
		}
		for _, fld := range []struct {
			col string
			dst *float64
		}{
			{"Wind_Speed", &r.WindSpeed},
			{"Building_Loss", &r.StructureLoss},
			{"Contents_Loss", &r.ContentsLoss},
		} {
			raw := rec[index[fld.col]]
			if *fld.dst, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("losses %s line %d: %s: %w", path, line, fld.col, err)
			}
			if v := *fld.dst; math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, fmt.Errorf("losses %s line %d: %s: invalid value %q", path, line, fld.col, raw)
			}
		}
		records = append(records, r)
	}
	return records, nil
}

// WriteCountyTotals writes one row per county, in cents.
func WriteCountyTotals(path string, counties []domain.CountyTotal) error {
	return writeCSV(path, countyColumns, func(cw *csv.Writer) error {
		for _, c := range counties {
			s := decimal.NewFromFloat(c.StructureLoss)
			ct := decimal.NewFromFloat(c.ContentsLoss)
			if err := cw.Write([]string{
				c.CountyFIPS,
				strconv.Itoa(c.Buildings),
				s.StringFixed(2),
				ct.StringFixed(2),
				s.Add(ct).StringFixed(2),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteScenarioTotals writes the cross-scenario summary rounded to whole
// dollars.
func WriteScenarioTotals(path string, totals []domain.ScenarioTotal) error {
	return writeCSV(path, totalColumns, func(cw *csv.Writer) error {
		for _, t := range totals {
			s := decimal.NewFromFloat(t.StructureLoss).Round(0)
			c := decimal.NewFromFloat(t.ContentsLoss).Round(0)
			if err := cw.Write([]string{t.Scenario, s.String(), c.String(), s.Add(c).String()}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, header []string, rows func(*csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := rows(cw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
