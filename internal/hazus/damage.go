package hazus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
)

// Curve is a damage function: strictly increasing wind speeds (mph) with
// non-decreasing loss ratios.
type Curve struct {
	Speeds []float64
	Ratios []float64
}

// Point is one control point of a curve.
type Point struct {
	Speed float64
	Ratio float64
}

// NewCurve sorts points by speed and validates them.
func NewCurve(points []Point) (Curve, error) {
	if len(points) == 0 {
		return Curve{}, errors.New("curve has no control points")
	}
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b Point) int {
		switch {
		case a.Speed < b.Speed:
			return -1
		case a.Speed > b.Speed:
			return 1
		}
		return 0
	})

	c := Curve{
		Speeds: make([]float64, len(sorted)),
		Ratios: make([]float64, len(sorted)),
	}
	for i, p := range sorted {
		if math.IsNaN(p.Speed) || math.IsInf(p.Speed, 0) || math.IsNaN(p.Ratio) || math.IsInf(p.Ratio, 0) {
			return Curve{}, fmt.Errorf("control point %d is not finite", i)
		}
		if p.Ratio < 0 {
			return Curve{}, fmt.Errorf("negative loss ratio %g at %g mph", p.Ratio, p.Speed)
		}
		if i > 0 {
			if p.Speed == sorted[i-1].Speed {
				return Curve{}, fmt.Errorf("duplicate wind speed %g", p.Speed)
			}
			if p.Ratio < sorted[i-1].Ratio {
				return Curve{}, fmt.Errorf("loss ratio decreases from %g to %g between %g and %g mph",
					sorted[i-1].Ratio, p.Ratio, sorted[i-1].Speed, p.Speed)
			}
		}
		c.Speeds[i] = p.Speed
		c.Ratios[i] = p.Ratio
	}
	return c, nil
}

// MinSpeed returns the lowest tabulated speed.
func (c Curve) MinSpeed() float64 { return c.Speeds[0] }

// MaxSpeed returns the highest tabulated speed.
func (c Curve) MaxSpeed() float64 { return c.Speeds[len(c.Speeds)-1] }

type curveKey struct {
	wbID       string
	terrain    int
	descriptor int
}

// DamageTable indexes damage curves by (wbID, terrain class, descriptor).
type DamageTable struct {
	descriptors config.DamageDescriptors
	curves      map[curveKey]Curve
}

// NewDamageTable returns an empty table reading the given descriptors as the
// structure and contents curves.
func NewDamageTable(descriptors config.DamageDescriptors) *DamageTable {
	return &DamageTable{descriptors: descriptors, curves: make(map[curveKey]Curve)}
}

// Add registers a curve. A second curve for the same key is rejected.
func (t *DamageTable) Add(wbID string, terrain, descriptor int, points []Point) error {
	key := curveKey{wbID: normalizeID(wbID), terrain: terrain, descriptor: descriptor}
	if _, dup := t.curves[key]; dup {
		return fmt.Errorf("duplicate damage curve wbID=%s terrain=%d descriptor=%d", key.wbID, terrain, descriptor)
	}
	c, err := NewCurve(points)
	if err != nil {
		return fmt.Errorf("damage curve wbID=%s terrain=%d descriptor=%d: %w", key.wbID, terrain, descriptor, err)
	}
	t.curves[key] = c
	return nil
}

// CurveFor returns the structural damage curve for a building type and terrain.
func (t *DamageTable) CurveFor(wbID string, terrain int) (Curve, error) {
	return t.lookup(wbID, terrain, t.descriptors.Building)
}

// ContentsCurveFor returns the contents damage curve for a building type and terrain.
func (t *DamageTable) ContentsCurveFor(wbID string, terrain int) (Curve, error) {
	return t.lookup(wbID, terrain, t.descriptors.Contents)
}

func (t *DamageTable) lookup(wbID string, terrain, descriptor int) (Curve, error) {
	c, ok := t.curves[curveKey{wbID: normalizeID(wbID), terrain: terrain, descriptor: descriptor}]
	if !ok {
		return Curve{}, domain.MappingError("damage curve lookup",
			fmt.Errorf("wbID %s terrain %d descriptor %d: %w", wbID, terrain, descriptor, domain.ErrMissingDamageCurve))
	}
	return c, nil
}

// Len returns the number of curves.
func (t *DamageTable) Len() int { return len(t.curves) }

// LoadDamageTable reads huDamLossFunc.csv. Both the Hazus wide layout (one
// WS<speed> column per control point) and a long layout with WindSpeed and
// LossRatio columns are accepted. Any defect is a configuration error.
func LoadDamageTable(path string, descriptors config.DamageDescriptors) (*DamageTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ConfigurationError("open damage functions", err)
	}
	defer f.Close()

	t, err := ReadDamageTable(f, descriptors)
	if err != nil {
		return nil, domain.ConfigurationError("load damage functions", fmt.Errorf("%s: %w", path, err))
	}
	return t, nil
}

// ReadDamageTable parses damage functions from r.
func ReadDamageTable(r io.Reader, descriptors config.DamageDescriptors) (*DamageTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	tbl, err := newTable("damage functions", rows)
	if err != nil {
		return nil, err
	}

	idCol, err := tbl.col("wbID")
	if err != nil {
		return nil, err
	}
	terrainCol, err := tbl.col("TERRAINID")
	if err != nil {
		return nil, err
	}
	descCol, err := tbl.col("DamLossDescID")
	if err != nil {
		return nil, err
	}

	t := NewDamageTable(descriptors)
	if _, long := tbl.index["windspeed"]; long {
		return t, t.readLong(tbl, idCol, terrainCol, descCol)
	}
	return t, t.readWide(tbl, idCol, terrainCol, descCol)
}

func (t *DamageTable) readWide(tbl *table, idCol, terrainCol, descCol int) error {
	type speedCol struct {
		col   int
		speed float64
	}
	var speeds []speedCol
	for i, h := range tbl.header {
		h = strings.TrimSpace(h)
		if len(h) < 3 || !strings.EqualFold(h[:2], "WS") {
			continue
		}
		v, err := strconv.ParseFloat(h[2:], 64)
		if err != nil {
			continue
		}
		speeds = append(speeds, speedCol{col: i, speed: v})
	}
	if len(speeds) == 0 {
		return errors.New("no WS<speed> columns and no WindSpeed column")
	}

	for i, row := range tbl.rows {
		key, ok, err := rowKey(row, idCol, terrainCol, descCol)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if !ok {
			continue
		}
		points := make([]Point, 0, len(speeds))
		for _, s := range speeds {
			raw := cell(row, s.col)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			ratio, err := parseFloat(raw)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i+2, tbl.header[s.col], err)
			}
			points = append(points, Point{Speed: s.speed, Ratio: ratio})
		}
		if err := t.Add(key.wbID, key.terrain, key.descriptor, points); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return nil
}

func (t *DamageTable) readLong(tbl *table, idCol, terrainCol, descCol int) error {
	speedCol, err := tbl.col("WindSpeed")
	if err != nil {
		return err
	}
	ratioCol, err := tbl.col("LossRatio")
	if err != nil {
		return err
	}

	grouped := make(map[curveKey][]Point)
	var order []curveKey
	for i, row := range tbl.rows {
		key, ok, err := rowKey(row, idCol, terrainCol, descCol)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if !ok {
			continue
		}
		speed, err := parseFloat(cell(row, speedCol))
		if err != nil {
			return fmt.Errorf("row %d: WindSpeed: %w", i+2, err)
		}
		ratio, err := parseFloat(cell(row, ratioCol))
		if err != nil {
			return fmt.Errorf("row %d: LossRatio: %w", i+2, err)
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], Point{Speed: speed, Ratio: ratio})
	}
	for _, key := range order {
		if err := t.Add(key.wbID, key.terrain, key.descriptor, grouped[key]); err != nil {
			return err
		}
	}
	return nil
}

// rowKey parses the curve key of a row; ok is false for blank rows.
func rowKey(row []string, idCol, terrainCol, descCol int) (curveKey, bool, error) {
	id := normalizeID(cell(row, idCol))
	if id == "" {
		return curveKey{}, false, nil
	}
	terrain, err := parseInt(cell(row, terrainCol))
	if err != nil {
		return curveKey{}, false, fmt.Errorf("TERRAINID: %w", err)
	}
	desc, err := parseInt(cell(row, descCol))
	if err != nil {
		return curveKey{}, false, fmt.Errorf("DamLossDescID: %w", err)
	}
	return curveKey{wbID: id, terrain: terrain, descriptor: desc}, true, nil
}
