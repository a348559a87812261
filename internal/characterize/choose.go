// Package characterize assigns Hazus attributes to inventory buildings: the
// mapping scheme, a sampled subtype, a chain of sampled structural
// characteristics, the matching wind building type and the terrain class.
//
// Sampling is reproducible. Each building draws from its own stream derived
// from the run seed and the building ID, and consumes exactly one draw for
// the subtype plus one per characteristic rule, so results do not depend on
// worker count or processing order.
package characterize

import (
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
)

// Choose performs weighted choice: it walks the cumulative mass in declared
// order and returns the index of the first category whose cumulative mass
// exceeds draw. If the mass runs out before draw (rounding, or a table that
// sums to less than 1) the last positive-weight category absorbs the
// remainder, so any draw in [0, 1) selects something. A distribution with no
// positive weight returns domain.ErrEmptyDistribution.
func Choose(d hazus.Distribution, draw float64) (int, error) {
	var cum float64
	last := -1
	for i, w := range d.Weights {
		if w <= 0 {
			continue
		}
		last = i
		cum += w
		if draw < cum {
			return i, nil
		}
	}
	if last < 0 {
		return 0, domain.ErrEmptyDistribution
	}
	return last, nil
}
