package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-data-windloss/internal/characterize"
	"github.com/couchcryptid/storm-data-windloss/internal/checkpoint"
	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"github.com/couchcryptid/storm-data-windloss/internal/inventory"
	"github.com/couchcryptid/storm-data-windloss/internal/loss"
	"github.com/couchcryptid/storm-data-windloss/internal/spatial"
	"github.com/couchcryptid/storm-data-windloss/internal/windfield"
)

// farJoinM is the join distance above which a building is reported as far
// from any wind grid point.
const farJoinM = 10_000

// inventoryCache loads the building inventory on first use.
type inventoryCache struct {
	path      string
	cols      config.InventoryColumns
	buildings []domain.Building
	loaded    bool
}

func (c *inventoryCache) get() ([]domain.Building, error) {
	if c.loaded {
		return c.buildings, nil
	}
	b, err := inventory.Load(c.path, c.cols)
	if err != nil {
		return nil, err
	}
	c.buildings, c.loaded = b, true
	return b, nil
}

// processWind converts each scenario's raw swath into the processed wind table.
func (p *Pipeline) processWind(ctx context.Context) error {
	conv := windfield.NewConverter(p.methodology)
	for _, sc := range p.opts.Scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := ProcessedWindPath(p.opts.OutputDir, sc)
		if p.reuse(out) {
			p.logger.Info("processed wind exists, skipping", "scenario", sc, "path", out)
			continue
		}
		stats, err := windfield.Process(RawWindPath(p.opts.WindDir, sc), out, conv)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc, err)
		}
		if stats.Skipped > 0 {
			p.metrics.DataQuality.WithLabelValues("wind_grid").Add(float64(stats.Skipped))
		}
		p.logger.Info("wind field processed",
			"scenario", sc,
			"points", stats.Points,
			"skipped", stats.Skipped,
			"max_gust_mph", stats.MaxGust,
		)
	}
	return nil
}

// joinWind assigns every building its nearest grid point's speeds.
func (p *Pipeline) joinWind(ctx context.Context, inv *inventoryCache) error {
	buildings, err := inv.get()
	if err != nil {
		return err
	}
	for _, sc := range p.opts.Scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := JoinedPath(p.opts.OutputDir, sc)
		if p.reuse(out) {
			p.logger.Info("joined wind exists, skipping", "scenario", sc, "path", out)
			continue
		}
		processed := ProcessedWindPath(p.opts.OutputDir, sc)
		if err := requireFile(processed, StepWindField); err != nil {
			return err
		}
		points, err := windfield.ReadProcessed(processed)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc, err)
		}
		ix, err := spatial.NewIndex(points)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc, err)
		}

		assignments, stats := spatial.Join(ix, buildings, farJoinM)
		if stats.NoLocation > 0 {
			p.metrics.DataQuality.WithLabelValues("location").Add(float64(stats.NoLocation))
			p.logger.Warn("buildings without coordinates left unjoined", "scenario", sc, "count", stats.NoLocation)
		}
		if stats.BeyondLimit > 0 {
			p.logger.Warn("buildings far from the wind grid",
				"scenario", sc,
				"count", stats.BeyondLimit,
				"limit_m", farJoinM,
				"max_distance_m", stats.MaxDistanceM,
			)
		}
		if err := spatial.WriteAssignments(out, assignments); err != nil {
			return err
		}
		p.logger.Info("wind joined to buildings",
			"scenario", sc,
			"joined", stats.Joined,
			"mean_distance_m", stats.MeanDistance,
		)
	}
	return nil
}

// estimateLosses characterizes the inventory (or reloads it) and runs the
// loss pass for every scenario.
func (p *Pipeline) estimateLosses(ctx context.Context, inv *inventoryCache, manifest *Manifest) error {
	damagePath := filepath.Join(p.opts.HazusDir, p.methodology.Files.DamageFunctions)
	damage, err := hazus.LoadDamageTable(damagePath, p.methodology.DamageDescriptors)
	if err != nil {
		return err
	}
	p.logger.Info("damage functions loaded", "path", damagePath, "curves", damage.Len())

	var characterized []domain.CharacterizedBuilding
	err = p.timed("characterize", "", func() error {
		var reused bool
		characterized, reused, err = p.characterized(ctx, inv, damage)
		manifest.Checkpoint = p.opts.checkpointPath()
		manifest.CheckpointReused = reused
		return err
	})
	if err != nil {
		return err
	}
	manifest.Buildings = len(characterized)

	calc := loss.NewCalculator(damage, p.methodology.Contents, p.opts.Workers, p.logger, p.metrics)
	totals := make([]domain.ScenarioTotal, 0, len(p.opts.Scenarios))
	for _, sc := range p.opts.Scenarios {
		res, err := p.scenarioLosses(ctx, calc, sc, characterized)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc, err)
		}
		totals = append(totals, res.Total)
		manifest.Results = append(manifest.Results, res)
	}
	return loss.WriteScenarioTotals(TotalLossPath(p.opts.OutputDir), totals)
}

// characterized returns the characterized inventory, from the checkpoint
// when one validates, otherwise by running the characterization cascade and
// saving a new checkpoint.
func (p *Pipeline) characterized(ctx context.Context, inv *inventoryCache, damage *hazus.DamageTable) ([]domain.CharacterizedBuilding, bool, error) {
	var buildings []domain.Building
	if inv != nil {
		b, err := inv.get()
		if err != nil {
			return nil, false, err
		}
		buildings = b
	}

	store := checkpoint.NewStore(p.opts.checkpointPath())
	if p.reuse(store.Path()) {
		cb, err := store.Load(buildings)
		if err != nil {
			p.metrics.CheckpointLoads.WithLabelValues("invalid").Inc()
			return nil, false, err
		}
		p.metrics.CheckpointLoads.WithLabelValues("hit").Inc()
		p.logger.Info("checkpoint loaded", "path", store.Path(), "buildings", len(cb))
		return cb, true, nil
	}
	p.metrics.CheckpointLoads.WithLabelValues("miss").Inc()
	if inv == nil {
		return nil, false, fmt.Errorf("no checkpoint at %s and no building inventory to characterize", store.Path())
	}

	mappingPath := filepath.Join(p.opts.HazusDir, p.methodology.Files.Mapping)
	tables, err := hazus.LoadWorkbook(mappingPath, p.methodology)
	if err != nil {
		return nil, false, err
	}
	report := hazus.Validate(tables, damage, p.methodology.ProbabilityTolerance)
	for _, issue := range report.Issues {
		p.logger.Warn("reference table issue",
			"severity", string(issue.Severity),
			"table", issue.Table,
			"key", issue.Key,
			"message", issue.Message,
		)
	}

	c, err := characterize.New(tables, p.methodology, p.opts.Seed, p.opts.Workers, p.logger, p.metrics)
	if err != nil {
		return nil, false, err
	}
	p.characterizer.Store(c)
	p.mu.Lock()
	p.status.BuildingsTotal = len(buildings)
	p.mu.Unlock()

	out, err := c.Run(ctx, buildings)
	if err != nil {
		return nil, false, err
	}
	if err := store.Save(out); err != nil {
		return nil, false, err
	}
	p.logger.Info("checkpoint saved", "path", store.Path(), "buildings", len(out))
	return out, false, nil
}

// scenarioLosses computes (or reloads) one scenario's losses, aggregates them
// and writes the county table.
func (p *Pipeline) scenarioLosses(ctx context.Context, calc *loss.Calculator, scenario string, buildings []domain.CharacterizedBuilding) (ScenarioResult, error) {
	dir := ResultsDir(p.opts.OutputDir, scenario)
	lossPath := filepath.Join(dir, loss.LossesFile)

	var res loss.Result
	reused := p.reuse(lossPath)
	err := p.timed("loss", scenario, func() error {
		if reused {
			records, err := loss.ReadLosses(lossPath)
			if err != nil {
				return err
			}
			res = loss.Result{Scenario: scenario, Records: records, WithoutWind: max(len(buildings)-len(records), 0)}
			p.logger.Info("losses exist, reusing", "scenario", scenario, "path", lossPath)
			return nil
		}

		joined := JoinedPath(p.opts.OutputDir, scenario)
		if err := requireFile(joined, StepSpatial); err != nil {
			return err
		}
		assignments, err := spatial.ReadAssignments(joined)
		if err != nil {
			return err
		}
		res, err = calc.Run(ctx, scenario, buildings, spatial.GustByBuilding(assignments))
		if err != nil {
			return err
		}
		return loss.WriteLosses(lossPath, res.Records)
	})
	if err != nil {
		return ScenarioResult{}, err
	}

	var summary loss.Summary
	err = p.timed("aggregate", scenario, func() error {
		summary = loss.Aggregate(scenario, res.Records)
		return loss.WriteCountyTotals(filepath.Join(dir, loss.CountyLossesFile), summary.Counties)
	})
	if err != nil {
		return ScenarioResult{}, err
	}

	t := summary.Total
	p.metrics.ScenarioLoss.WithLabelValues(scenario, "structure").Set(t.StructureLoss)
	p.metrics.ScenarioLoss.WithLabelValues(scenario, "contents").Set(t.ContentsLoss)
	p.metrics.ScenarioLoss.WithLabelValues(scenario, "total").Set(t.TotalLoss)

	if p.sink != nil {
		if err := p.sink.PublishLosses(ctx, scenario, res.Records); err != nil {
			return ScenarioResult{}, err
		}
	}

	p.logger.Info("scenario losses",
		"scenario", scenario,
		"buildings", t.Buildings,
		"without_wind", res.WithoutWind,
		"building_loss", t.StructureLoss,
		"contents_loss", t.ContentsLoss,
		"total_loss", t.TotalLoss,
	)
	return ScenarioResult{
		Total:        t,
		WithoutWind:  res.WithoutWind,
		Counties:     len(summary.Counties),
		LossesReused: reused,
	}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func requireFile(path string, producedBy int) error {
	if !fileExists(path) {
		return fmt.Errorf("%s not found: run step %d first", path, producedBy)
	}
	return nil
}
