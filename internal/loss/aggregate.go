package loss

import (
	"slices"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary is a scenario's aggregated losses.
type Summary struct {
	Total    domain.ScenarioTotal
	Counties []domain.CountyTotal // sorted by county FIPS
}

type countySum struct {
	buildings int
	structure decimal.Decimal
	contents  decimal.Decimal
}

// Aggregate sums a scenario's loss records by county, then overall. Sums
// are exact decimals, so the totals do not depend on record order.
func Aggregate(scenario string, records []domain.LossRecord) Summary {
	sums := make(map[string]*countySum)
	for _, r := range records {
		s, ok := sums[r.CountyFIPS]
		if !ok {
			s = &countySum{}
			sums[r.CountyFIPS] = s
		}
		s.buildings++
		s.structure = s.structure.Add(decimal.NewFromFloat(r.StructureLoss))
		s.contents = s.contents.Add(decimal.NewFromFloat(r.ContentsLoss))
	}

	counties := make([]string, 0, len(sums))
	for fips := range sums {
		counties = append(counties, fips)
	}
	slices.Sort(counties)

	var (
		structure = decimal.Zero
		contents  = decimal.Zero
		buildings int
	)
	out := Summary{Counties: make([]domain.CountyTotal, 0, len(counties))}
	for _, fips := range counties {
		s := sums[fips]
		out.Counties = append(out.Counties, domain.CountyTotal{
			Scenario:      scenario,
			CountyFIPS:    fips,
			Buildings:     s.buildings,
			StructureLoss: s.structure.InexactFloat64(),
			ContentsLoss:  s.contents.InexactFloat64(),
		})
		structure = structure.Add(s.structure)
		contents = contents.Add(s.contents)
		buildings += s.buildings
	}

	out.Total = domain.ScenarioTotal{
		Scenario:      scenario,
		Buildings:     buildings,
		StructureLoss: structure.InexactFloat64(),
		ContentsLoss:  contents.InexactFloat64(),
		TotalLoss:     structure.Add(contents).InexactFloat64(),
	}
	return out
}
