package loss

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"github.com/couchcryptid/storm-data-windloss/internal/observability"
	"golang.org/x/sync/errgroup"
)

const chunkSize = 1024

// Result is the outcome of one scenario's loss pass.
type Result struct {
	Scenario string
	Records  []domain.LossRecord // inventory order
	// WithoutWind counts buildings the scenario assigned no wind speed.
	WithoutWind int
}

// Calculator computes per-building losses for a scenario.
type Calculator struct {
	damage   *hazus.DamageTable
	contents config.ContentsPolicy
	workers  int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCalculator returns a Calculator using the given damage functions and
// contents policy.
func NewCalculator(damage *hazus.DamageTable, contents config.ContentsPolicy, workers int, logger *slog.Logger, metrics *observability.Metrics) *Calculator {
	if workers < 1 {
		workers = 1
	}
	return &Calculator{
		damage:   damage,
		contents: contents,
		workers:  workers,
		logger:   logger,
		metrics:  metrics,
	}
}

type curvePair struct {
	structure Interpolator
	contents  Interpolator
}

type pairKey struct {
	wbID    string
	terrain int
}

// Run computes the losses of every building under one scenario. wind maps
// building ID to gust speed in mph. Buildings with no entry are skipped and
// counted. A building with wind whose (wbID, terrain) pair has no damage
// curve aborts the whole pass before any loss is computed.
func (c *Calculator) Run(ctx context.Context, scenario string, buildings []domain.CharacterizedBuilding, wind map[string]float64) (Result, error) {
	curves, err := c.resolveCurves(buildings, wind)
	if err != nil {
		return Result{}, err
	}

	records := make([]domain.LossRecord, len(buildings))
	present := make([]bool, len(buildings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for start := 0; start < len(buildings); start += chunkSize {
		end := min(start+chunkSize, len(buildings))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				b := buildings[i]
				speed, ok := wind[b.ID]
				if !ok {
					continue
				}
				records[i] = c.estimate(scenario, b, speed, curves[pairKey{b.WBID, b.TerrainID}])
				present[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Scenario: scenario, Records: make([]domain.LossRecord, 0, len(buildings))}
	for i, ok := range present {
		if !ok {
			res.WithoutWind++
			continue
		}
		res.Records = append(res.Records, records[i])
	}

	c.metrics.LossesComputed.WithLabelValues(scenario).Add(float64(len(res.Records)))
	if res.WithoutWind > 0 {
		c.metrics.BuildingsWithoutWind.WithLabelValues(scenario).Add(float64(res.WithoutWind))
		c.logger.Warn("buildings without wind speed skipped",
			"scenario", scenario,
			"skipped", res.WithoutWind,
		)
	}
	return res, nil
}

// resolveCurves fits one interpolator pair per distinct (wbID, terrain) of
// the buildings that have wind, scanning in inventory order so the reported
// missing curve is stable.
func (c *Calculator) resolveCurves(buildings []domain.CharacterizedBuilding, wind map[string]float64) (map[pairKey]curvePair, error) {
	curves := make(map[pairKey]curvePair)
	for _, b := range buildings {
		if _, ok := wind[b.ID]; !ok {
			continue
		}
		key := pairKey{b.WBID, b.TerrainID}
		if _, ok := curves[key]; ok {
			continue
		}
		structure, err := c.damage.CurveFor(b.WBID, b.TerrainID)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", b.ID, err)
		}
		pair := curvePair{structure: NewInterpolator(structure)}
		if c.contents.Mode == config.ContentsCurve {
			contents, err := c.damage.ContentsCurveFor(b.WBID, b.TerrainID)
			if err != nil {
				return nil, fmt.Errorf("building %s: %w", b.ID, err)
			}
			pair.contents = NewInterpolator(contents)
		}
		curves[key] = pair
	}
	return curves, nil
}

func (c *Calculator) estimate(scenario string, b domain.CharacterizedBuilding, speed float64, curves curvePair) domain.LossRecord {
	if math.IsInf(speed, 1) {
		speed = c.clampTo(scenario, b.ID, "wind_speed", speed, curves.topSpeed())
	} else {
		speed = c.clamp(scenario, b.ID, "wind_speed", speed)
	}
	structureValue := c.clamp(scenario, b.ID, "structure_value", b.StructureValue)
	contentsValue := c.clamp(scenario, b.ID, "contents_value", b.ContentsValue)

	structureRatio := curves.structure.Ratio(speed)
	var contentsRatio float64
	if c.contents.Mode == config.ContentsCurve {
		contentsRatio = curves.contents.Ratio(speed)
	} else {
		contentsRatio = c.contents.Fraction * structureRatio
	}

	return domain.LossRecord{
		BuildingID:     b.ID,
		CountyFIPS:     b.CountyFIPS,
		WBID:           b.WBID,
		TerrainID:      b.TerrainID,
		WindSpeed:      speed,
		StructureRatio: structureRatio,
		ContentsRatio:  contentsRatio,
		StructureLoss:  structureRatio * structureValue,
		ContentsLoss:   contentsRatio * contentsValue,
	}
}

// clamp replaces negative, NaN or infinite inputs with 0 and logs the
// adjustment as a data quality issue.
func (c *Calculator) clamp(scenario, buildingID, field string, v float64) float64 {
	if v >= 0 && !math.IsInf(v, 1) {
		return v
	}
	return c.clampTo(scenario, buildingID, field, v, 0)
}

func (c *Calculator) clampTo(scenario, buildingID, field string, v, to float64) float64 {
	err := domain.DataQualityError("compute loss", fmt.Errorf("%s %g clamped to %g", field, v, to))
	c.logger.Warn("input out of range",
		"scenario", scenario,
		"building_id", buildingID,
		"field", field,
		"error", err,
	)
	c.metrics.DataQuality.WithLabelValues(field).Inc()
	return to
}

// topSpeed is the highest control point of the pair, where every fitted
// curve has reached its maximum ratio. An unused contents curve is zero.
func (p curvePair) topSpeed() float64 {
	return max(p.structure.max, p.contents.max)
}
