package hazus_test

import (
	"path/filepath"
	"testing"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureSheets() []hazus.Sheet {
	return []hazus.Sheet{
		{Name: "huMappingSchemesByCountyFips", Rows: [][]any{
			{"CountyFIPS", "huBldgSchemeName"},
			{22071, "LASCH"},
			{1001, "ALSCH"},
		}},
		{Name: "huGbsOccMapping", Rows: [][]any{
			{"huOccMapSchemeName", "Occupancy", "WSF1", "WSF2", "MSF1"},
			{"LASCH", "RES1", 60, 30, 10},
			{"ALSCH", "RES1", 100, 0, 0},
		}},
		{Name: "huListofBldgChar", Rows: [][]any{
			{"BldgCharID", "CharType", "BldgChar"},
			{1, "Roof Shape", "rsgab"},
			{2, "Roof Shape", "rship"},
			{3, "Shutters", "shtys"},
			{4, "Shutters", "shtno"},
		}},
		{Name: "huBldgMapping", Rows: [][]any{
			{"huBldgSchemeName", "sbtName", "BLDGCHARID", "PercentDist"},
			{"LASCH", "WSF1", 3, 20},
			{"LASCH", "WSF1", 1, 70},
			{"LASCH", "WSF1", 2, 30},
			{"LASCH", "WSF1", 4, 80},
		}},
		{Name: "huListOfWindBldgTypes", Rows: [][]any{
			{"wbID", "sbtName", "charDescription"},
			{1, "WSF1", "rsgab, shtys"},
			{2, "WSF1", "rsgab, shtno"},
			{3, "WSF1", "rship, shtys"},
			{4, "WSF1", "rship, shtno"},
		}},
	}
}

func writeFixture(t *testing.T, sheets []hazus.Sheet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Mapping.xlsx")
	require.NoError(t, hazus.WriteWorkbook(path, sheets))
	return path
}

func TestLoadWorkbook(t *testing.T) {
	path := writeFixture(t, fixtureSheets())

	tables, err := hazus.LoadWorkbook(path, config.DefaultMethodology())
	require.NoError(t, err)

	assert.Equal(t, 2, tables.Schemes())
	assert.Equal(t, 2, tables.Counties())

	scheme, err := tables.SchemeFor("22071")
	require.NoError(t, err)
	assert.Equal(t, "LASCH", scheme.Name)

	occ := scheme.Occupancy["RES1"]
	assert.Equal(t, []string{"WSF1", "WSF2", "MSF1"}, occ.Categories)
	assert.InDeltaSlice(t, []float64{0.6, 0.3, 0.1}, occ.Weights, 1e-12)

	// County codes stored as numbers are zero-padded.
	al, err := tables.SchemeFor("01001")
	require.NoError(t, err)
	assert.Equal(t, "ALSCH", al.Name)

	names := make([]string, len(tables.CharTypes))
	for i, ct := range tables.CharTypes {
		names[i] = ct.Name
	}
	assert.Equal(t, []string{"Roof Shape", "Shutters"}, names)

	shutters := scheme.Subtypes["WSF1"]["Shutters"]
	assert.Equal(t, []string{"shtys", "shtno"}, shutters.Categories)
	assert.InDeltaSlice(t, []float64{0.2, 0.8}, shutters.Weights, 1e-12)

	roof := scheme.Subtypes["WSF1"]["Roof Shape"]
	assert.Equal(t, []string{"rsgab", "rship"}, roof.Categories)

	wbIDs := make([]string, 0, 4)
	for _, wt := range tables.WindTypes["WSF1"] {
		wbIDs = append(wbIDs, wt.WBID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4"}, wbIDs); diff != "" {
		t.Errorf("wind types mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, tables.WindTypes["WSF1"][0].Mentions("SHTYS"))
	assert.False(t, tables.WindTypes["WSF1"][0].Mentions("shtno"))
	assert.Empty(t, tables.Terrain)
}

func TestLoadWorkbook_TerrainSheet(t *testing.T) {
	sheets := append(fixtureSheets(), hazus.Sheet{Name: "huTerrain", Rows: [][]any{
		{"TerrainID", "MaxRoughness"},
		{2, 0.15},
		{1, 0.03},
	}})
	tables, err := hazus.LoadWorkbook(writeFixture(t, sheets), config.DefaultMethodology())
	require.NoError(t, err)

	assert.Equal(t, []hazus.TerrainBand{{TerrainID: 1, MaxRoughness: 0.03}, {TerrainID: 2, MaxRoughness: 0.15}}, tables.Terrain)
}

func TestSchemeFor_DefaultScheme(t *testing.T) {
	m := config.DefaultMethodology()
	m.DefaultScheme = "LASCH"
	tables, err := hazus.LoadWorkbook(writeFixture(t, fixtureSheets()), m)
	require.NoError(t, err)

	s, err := tables.SchemeFor("48201")
	require.NoError(t, err)
	assert.Equal(t, "LASCH", s.Name)
}

func TestSchemeFor_NoDefault(t *testing.T) {
	tables, err := hazus.LoadWorkbook(writeFixture(t, fixtureSheets()), config.DefaultMethodology())
	require.NoError(t, err)

	_, err = tables.SchemeFor("48201")
	require.ErrorIs(t, err, domain.ErrSchemeNotFound)
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}

func TestSchemeFor_DefaultWithoutRows(t *testing.T) {
	tables := hazus.NewTables("MISSING")

	_, err := tables.SchemeFor("22071")
	require.ErrorIs(t, err, domain.ErrSchemeNotFound)
}

func TestLoadWorkbook_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]hazus.Sheet) []hazus.Sheet
		errMsg string
	}{
		{
			name: "missing sheet",
			mutate: func(s []hazus.Sheet) []hazus.Sheet {
				return s[:4]
			},
			errMsg: `sheet "huListOfWindBldgTypes" not found`,
		},
		{
			name: "missing column",
			mutate: func(s []hazus.Sheet) []hazus.Sheet {
				s[0].Rows[0] = []any{"County", "huBldgSchemeName"}
				return s
			},
			errMsg: `missing column "CountyFIPS"`,
		},
		{
			name: "unknown characteristic id",
			mutate: func(s []hazus.Sheet) []hazus.Sheet {
				s[3].Rows = append(s[3].Rows, []any{"LASCH", "WSF1", 99, 10})
				return s
			},
			errMsg: "BLDGCHARID 99 is not in the characteristic list",
		},
		{
			name: "bad percentage",
			mutate: func(s []hazus.Sheet) []hazus.Sheet {
				s[1].Rows[1] = []any{"LASCH", "RES1", "sixty", 30, 10}
				return s
			},
			errMsg: `invalid number "sixty"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, tt.mutate(fixtureSheets()))
			_, err := hazus.LoadWorkbook(path, config.DefaultMethodology())
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindConfiguration))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadWorkbook_MissingFile(t *testing.T) {
	_, err := hazus.LoadWorkbook(filepath.Join(t.TempDir(), "nope.xlsx"), config.DefaultMethodology())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}

func TestDistribution(t *testing.T) {
	d := hazus.Distribution{
		Categories: []string{"a", "b", "c", "d"},
		Weights:    []float64{0.1, 0.2, 0.3, 0.4},
	}
	assert.InDelta(t, 1.0, d.Mass(), 1e-12)
	assert.Equal(t, 4, d.Len())

	s := d.Slice(1, 3)
	assert.Equal(t, []string{"b", "c"}, s.Categories)

	n := s.Normalized()
	assert.InDeltaSlice(t, []float64{0.4, 0.6}, n.Weights, 1e-12)

	assert.Equal(t, []string{"c", "d"}, d.Slice(2, 0).Categories)
	assert.Equal(t, 0, d.Slice(4, 0).Len())
}
