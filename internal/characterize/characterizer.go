package characterize

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"github.com/couchcryptid/storm-data-windloss/internal/observability"
	"golang.org/x/sync/errgroup"
)

// chunkSize is the number of consecutive buildings handed to one worker task.
const chunkSize = 512

// Characterizer runs the characterization cascade over an inventory.
type Characterizer struct {
	tables      *hazus.Tables
	methodology *config.Methodology
	chain       RuleChain
	matcher     *Matcher
	terrain     *TerrainClassifier
	seed        uint64
	workers     int
	logger      *slog.Logger
	metrics     *observability.Metrics
	done        atomic.Int64
}

// New prepares a Characterizer. All reference-table problems surface here,
// before any building is processed.
func New(tables *hazus.Tables, m *config.Methodology, seed uint64, workers int, logger *slog.Logger, metrics *observability.Metrics) (*Characterizer, error) {
	chain, err := NewRuleChain(tables.CharTypes, m.Conditions)
	if err != nil {
		return nil, err
	}
	terrain, err := NewTerrainClassifier(tables.Terrain, m.TerrainUpperBounds)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &Characterizer{
		tables:      tables,
		methodology: m,
		chain:       chain,
		matcher:     NewMatcher(tables),
		terrain:     terrain,
		seed:        seed,
		workers:     workers,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Chain returns the characteristic rule chain in draw order.
func (c *Characterizer) Chain() RuleChain { return c.chain }

// Progress returns the number of buildings characterized so far in the
// current run.
func (c *Characterizer) Progress() int64 { return c.done.Load() }

// Characterize assigns scheme, subtype, characteristics, wind building type
// and terrain class to one building. It is a pure function of the building
// and the run seed.
func (c *Characterizer) Characterize(b domain.Building) (domain.CharacterizedBuilding, error) {
	scheme, err := c.tables.SchemeFor(b.CountyFIPS)
	if err != nil {
		return domain.CharacterizedBuilding{}, err
	}

	stream := domain.NewStream(c.seed, b.ID)
	subtype, err := SampleSubtype(scheme, b, c.methodology, stream.Draw())
	if err != nil {
		return domain.CharacterizedBuilding{}, err
	}

	chars := AssignCharacteristics(c.chain, scheme, subtype, stream)

	wbID, err := c.matcher.Match(subtype, chars)
	if err != nil {
		return domain.CharacterizedBuilding{}, err
	}

	terrain, err := c.terrain.Classify(b.SurfaceRoughness)
	if err != nil {
		if !domain.IsKind(err, domain.KindDataQuality) {
			return domain.CharacterizedBuilding{}, err
		}
		c.logger.Warn("surface roughness out of range", "building_id", b.ID, "error", err)
		c.metrics.DataQuality.WithLabelValues("roughness").Inc()
	}

	return domain.CharacterizedBuilding{
		Building:        b,
		Scheme:          scheme.Name,
		Subtype:         subtype,
		Characteristics: chars,
		WBID:            wbID,
		TerrainID:       terrain,
	}, nil
}

// Run characterizes every building using up to the configured number of
// workers. The output is index-aligned with the input. The first fatal error
// cancels the remaining work and is returned; no partial inventory is.
func (c *Characterizer) Run(ctx context.Context, buildings []domain.Building) ([]domain.CharacterizedBuilding, error) {
	c.done.Store(0)
	out := make([]domain.CharacterizedBuilding, len(buildings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for start := 0; start < len(buildings); start += chunkSize {
		end := min(start+chunkSize, len(buildings))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				cb, err := c.Characterize(buildings[i])
				if err != nil {
					c.metrics.CharacterizationErrors.WithLabelValues(kindLabel(err)).Inc()
					return err
				}
				out[i] = cb
				c.done.Add(1)
				c.metrics.BuildingsCharacterized.Inc()
			}
			return nil
		})
		if gctx.Err() != nil {
			break
		}
	}

	// Wait returns the first error, which is the building failure rather
	// than the cancellation it caused in the other workers.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("characterization complete", "buildings", len(out), "workers", c.workers)
	return out, nil
}

func kindLabel(err error) string {
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "unknown"
}
