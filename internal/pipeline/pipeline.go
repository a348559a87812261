package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/storm-data-windloss/internal/characterize"
	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Pipeline steps, selectable with Options.Steps.
const (
	StepWindField = 1 // raw wind swath -> processed wind table
	StepSpatial   = 2 // processed wind + inventory -> joined table
	StepLoss      = 3 // characterization, losses and aggregation
)

// LossSink receives every scenario's loss records after they are written.
type LossSink interface {
	PublishLosses(ctx context.Context, scenario string, records []domain.LossRecord) error
}

// Options selects the inputs, outputs and steps of one run.
type Options struct {
	Scenarios []string
	Steps     []int

	WindDir    string // raw swath CSVs, <scenario>.csv
	Buildings  string // NSI inventory CSV
	HazusDir   string // Mapping.xlsx and huDamLossFunc.csv
	OutputDir  string
	Checkpoint string // defaults to <output>/building_inventory/nsi_wbId_sr.csv

	// ForceRerun recomputes every selected step even when its outputs exist.
	ForceRerun bool

	Seed    uint64
	Workers int
}

func (o Options) has(step int) bool { return slices.Contains(o.Steps, step) }

func (o Options) checkpointPath() string {
	if o.Checkpoint != "" {
		return o.Checkpoint
	}
	return CheckpointPath(o.OutputDir)
}

// Validate checks that every selected step has the inputs it needs.
func (o Options) Validate() error {
	var errs []error
	if len(o.Scenarios) == 0 {
		errs = append(errs, errors.New("at least one scenario is required"))
	}
	if len(o.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}
	for _, s := range o.Steps {
		if s < StepWindField || s > StepLoss {
			errs = append(errs, fmt.Errorf("unknown step %d", s))
		}
	}
	if o.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if o.has(StepWindField) && o.WindDir == "" {
		errs = append(errs, errors.New("step 1 needs a wind directory"))
	}
	if o.has(StepSpatial) && o.Buildings == "" {
		errs = append(errs, errors.New("step 2 needs a building inventory"))
	}
	if o.has(StepLoss) && o.HazusDir == "" {
		errs = append(errs, errors.New("step 3 needs a Hazus directory"))
	}
	return errors.Join(errs...)
}

// Pipeline runs the wind processing, spatial join and loss steps.
type Pipeline struct {
	opts        Options
	methodology *config.Methodology
	sink        LossSink
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	newID       func() string

	ready         atomic.Bool
	characterizer atomic.Pointer[characterize.Characterizer]
	mu            sync.Mutex
	status        domain.RunStatus
}

// New creates a Pipeline. sink may be nil.
func New(opts Options, m *config.Methodology, sink LossSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:        opts,
		methodology: m,
		sink:        sink,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		newID:       uuid.NewString,
	}
}

// CheckReadiness returns nil once the first step has finished, or an error
// describing why the run is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a step yet")
	}
	return nil
}

// Status reports the current stage and characterization progress.
func (p *Pipeline) Status() domain.RunStatus {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	if c := p.characterizer.Load(); c != nil {
		s.BuildingsCharacterized = c.Progress()
	}
	return s
}

func (p *Pipeline) setStage(stage, scenario string) {
	p.mu.Lock()
	p.status.Stage = stage
	p.status.Scenario = scenario
	p.mu.Unlock()
}

// Run executes the selected steps in order and writes the run manifest.
// Any error aborts the run; outputs of completed steps are kept.
func (p *Pipeline) Run(ctx context.Context) (*Manifest, error) {
	if err := p.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run options: %w", err)
	}

	manifest := &Manifest{
		RunID:     p.newID(),
		StartedAt: p.clock.Now().UTC(),
		Seed:      p.opts.Seed,
		Workers:   p.opts.Workers,
		Steps:     slices.Sorted(slices.Values(p.opts.Steps)),
		Scenarios: p.opts.Scenarios,
	}
	p.mu.Lock()
	p.status = domain.RunStatus{RunID: manifest.RunID, Stage: "starting", StartedAt: manifest.StartedAt}
	p.mu.Unlock()

	p.logger.Info("pipeline started",
		"run_id", manifest.RunID,
		"scenarios", p.opts.Scenarios,
		"steps", manifest.Steps,
		"force_rerun", p.opts.ForceRerun,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if p.opts.has(StepWindField) {
		if err := p.timed("windfield", "", func() error { return p.processWind(ctx) }); err != nil {
			return nil, err
		}
		p.ready.Store(true)
	}

	var inv *inventoryCache
	if p.opts.Buildings != "" {
		inv = &inventoryCache{path: p.opts.Buildings, cols: p.methodology.Inventory}
	}

	if p.opts.has(StepSpatial) {
		if err := p.timed("spatial", "", func() error { return p.joinWind(ctx, inv) }); err != nil {
			return nil, err
		}
		p.ready.Store(true)
	}

	if p.opts.has(StepLoss) {
		if err := p.estimateLosses(ctx, inv, manifest); err != nil {
			return nil, err
		}
		p.ready.Store(true)
	}

	manifest.FinishedAt = p.clock.Now().UTC()
	if p.opts.has(StepLoss) {
		if err := manifest.Save(ManifestPath(p.opts.OutputDir)); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.status.Stage = "done"
	p.status.Scenario = ""
	p.status.Done = true
	p.mu.Unlock()

	p.logger.Info("pipeline finished",
		"run_id", manifest.RunID,
		"duration", manifest.FinishedAt.Sub(manifest.StartedAt).String(),
	)
	return manifest, nil
}

// timed runs fn as the named stage and records its duration.
func (p *Pipeline) timed(stage, scenario string, fn func() error) error {
	p.setStage(stage, scenario)
	start := p.clock.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(stage).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

// reuse reports whether an existing output may stand in for recomputation.
func (p *Pipeline) reuse(path string) bool {
	return !p.opts.ForceRerun && fileExists(path)
}
