package characterize

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
)

// Terrain classes run from 1 (open) to 5 (dense urban).
const (
	MinTerrainClass = 1
	MaxTerrainClass = 5
)

// TerrainClassifier maps surface roughness to a terrain class.
type TerrainClassifier struct {
	bands []hazus.TerrainBand
}

// NewTerrainClassifier uses the workbook's terrain bands when there are
// any, otherwise the methodology's four upper bounds with class 5 above the
// last. Bands must have ascending roughness bounds and class IDs in 1..5.
func NewTerrainClassifier(workbook []hazus.TerrainBand, upperBounds []float64) (*TerrainClassifier, error) {
	bands := workbook
	if len(bands) == 0 {
		bands = make([]hazus.TerrainBand, 0, len(upperBounds)+1)
		for i, ub := range upperBounds {
			bands = append(bands, hazus.TerrainBand{TerrainID: i + 1, MaxRoughness: ub})
		}
		bands = append(bands, hazus.TerrainBand{TerrainID: len(upperBounds) + 1, MaxRoughness: math.Inf(1)})
	}

	for i, b := range bands {
		if b.TerrainID < MinTerrainClass || b.TerrainID > MaxTerrainClass {
			return nil, domain.ConfigurationError("terrain classes",
				fmt.Errorf("terrain class %d outside %d..%d", b.TerrainID, MinTerrainClass, MaxTerrainClass))
		}
		if i > 0 && b.MaxRoughness <= bands[i-1].MaxRoughness {
			return nil, domain.ConfigurationError("terrain classes",
				fmt.Errorf("terrain class %d bound %g does not exceed the previous bound", b.TerrainID, b.MaxRoughness))
		}
	}
	return &TerrainClassifier{bands: bands}, nil
}

// Classify returns the first class whose inclusive upper bound covers
// roughness; roughness above every bound gets the last class. Negative or NaN
// roughness is clamped to the first class and reported as a data quality
// error alongside the valid class.
func (c *TerrainClassifier) Classify(roughness float64) (int, error) {
	if math.IsNaN(roughness) || roughness < 0 {
		return c.bands[0].TerrainID, domain.DataQualityError("classify terrain",
			fmt.Errorf("surface roughness %g clamped to terrain class %d", roughness, c.bands[0].TerrainID))
	}
	for _, b := range c.bands {
		if roughness <= b.MaxRoughness {
			return b.TerrainID, nil
		}
	}
	return c.bands[len(c.bands)-1].TerrainID, nil
}
