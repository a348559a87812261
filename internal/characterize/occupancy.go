package characterize

import (
	"fmt"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
)

// SampleSubtype draws the Hazus building subtype (sbtName) of b from the
// scheme's occupancy mapping. When b's construction type has a subtype
// column group only that group is sampled, and a group with no weight for
// this occupancy is a MappingError. A blank or ungrouped construction type
// samples the whole row. The sampled slice is always normalized first since
// it is a conditional of the full row.
func SampleSubtype(scheme *hazus.Scheme, b domain.Building, m *config.Methodology, draw float64) (string, error) {
	occ := b.HazusOccupancy()
	row, ok := scheme.Occupancy[occ]
	if !ok {
		return "", domain.MappingError("sample subtype",
			fmt.Errorf("building %s: occupancy %q in scheme %s: %w", b.ID, occ, scheme.Name, domain.ErrUnmappedOccupancy))
	}

	dist := row
	if g, ok := m.SubtypeGroup(string(b.ConstructionType)); ok {
		dist = row.Slice(g.Start, g.End)
		if dist.Mass() <= 0 {
			return "", domain.MappingError("sample subtype",
				fmt.Errorf("building %s: occupancy %q in scheme %s has no %s subtypes: %w",
					b.ID, occ, scheme.Name, b.ConstructionType, domain.ErrEmptyDistribution))
		}
	}

	i, err := Choose(dist.Normalized(), draw)
	if err != nil {
		return "", domain.MappingError("sample subtype",
			fmt.Errorf("building %s: occupancy %q in scheme %s: %w", b.ID, occ, scheme.Name, err))
	}
	return dist.Categories[i], nil
}
