package hazus

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/xuri/excelize/v2"
)

// LoadWorkbook reads the Hazus mapping workbook into Tables. Any missing sheet
// or column, or any unparseable number, is a configuration error.
func LoadWorkbook(path string, m *config.Methodology) (*Tables, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.ConfigurationError("open mapping workbook", err)
	}
	defer f.Close()

	t := NewTables(m.DefaultScheme)

	steps := []struct {
		sheet    string
		optional bool
		load     func(*table) error
	}{
		{m.Sheets.CountySchemes, false, t.loadCountySchemes},
		{m.Sheets.Characteristics, false, t.loadCharTypes},
		{m.Sheets.OccupancyMapping, false, t.loadOccupancyMapping},
		{m.Sheets.BuildingMapping, false, t.loadBuildingMapping},
		{m.Sheets.WindTypes, false, t.loadWindTypes},
		{m.Sheets.Terrain, true, t.loadTerrain},
	}
	for _, step := range steps {
		if step.sheet == "" {
			continue
		}
		idx, err := f.GetSheetIndex(step.sheet)
		if err != nil || idx < 0 {
			if step.optional {
				continue
			}
			return nil, domain.ConfigurationError("load mapping workbook",
				fmt.Errorf("sheet %q not found in %s", step.sheet, path))
		}
		rows, err := f.GetRows(step.sheet)
		if err != nil {
			return nil, domain.ConfigurationError("load mapping workbook",
				fmt.Errorf("read sheet %q: %w", step.sheet, err))
		}
		tbl, err := newTable(step.sheet, rows)
		if err != nil {
			return nil, domain.ConfigurationError("load mapping workbook", err)
		}
		if err := step.load(tbl); err != nil {
			return nil, domain.ConfigurationError("load mapping workbook", err)
		}
	}

	return t, nil
}

func (t *Tables) loadCountySchemes(tbl *table) error {
	fipsCol, err := tbl.col("CountyFIPS")
	if err != nil {
		return err
	}
	schemeCol, err := tbl.col("huBldgSchemeName")
	if err != nil {
		return err
	}
	for _, row := range tbl.rows {
		fips := normalizeFIPS(cell(row, fipsCol))
		scheme := strings.TrimSpace(cell(row, schemeCol))
		if fips == "" || scheme == "" {
			continue
		}
		// First assignment wins, matching the first-row lookup of the workbook.
		if _, ok := t.countySchemes[fips]; !ok {
			t.countySchemes[fips] = scheme
		}
	}
	return nil
}

func (t *Tables) loadCharTypes(tbl *table) error {
	idCol, err := tbl.col("BldgCharID")
	if err != nil {
		return err
	}
	typeCol, err := tbl.col("CharType")
	if err != nil {
		return err
	}
	valueCol, err := tbl.col("BldgChar")
	if err != nil {
		return err
	}

	index := make(map[string]int)
	for i, row := range tbl.rows {
		name := strings.TrimSpace(cell(row, typeCol))
		if name == "" {
			continue
		}
		id, err := parseInt(cell(row, idCol))
		if err != nil {
			return fmt.Errorf("sheet %q row %d: BldgCharID: %w", tbl.name, i+2, err)
		}
		pos, ok := index[name]
		if !ok {
			pos = len(t.CharTypes)
			index[name] = pos
			t.CharTypes = append(t.CharTypes, CharType{Name: name})
		}
		t.CharTypes[pos].Values = append(t.CharTypes[pos].Values, CharValue{
			ID:    id,
			Value: strings.TrimSpace(cell(row, valueCol)),
		})
	}
	for i := range t.CharTypes {
		slices.SortStableFunc(t.CharTypes[i].Values, func(a, b CharValue) int { return a.ID - b.ID })
	}
	return nil
}

func (t *Tables) loadOccupancyMapping(tbl *table) error {
	schemeCol, err := tbl.col("huOccMapSchemeName")
	if err != nil {
		return err
	}
	occCol, err := tbl.col("Occupancy")
	if err != nil {
		return err
	}

	// Every column after the two key columns is a subtype, in declared order.
	var subtypeCols []int
	var subtypes []string
	for i, h := range tbl.header {
		if i == schemeCol || i == occCol || strings.TrimSpace(h) == "" {
			continue
		}
		subtypeCols = append(subtypeCols, i)
		subtypes = append(subtypes, strings.TrimSpace(h))
	}
	if len(subtypes) == 0 {
		return fmt.Errorf("sheet %q has no subtype columns", tbl.name)
	}

	for i, row := range tbl.rows {
		name := strings.TrimSpace(cell(row, schemeCol))
		occ := strings.TrimSpace(cell(row, occCol))
		if name == "" || occ == "" {
			continue
		}
		weights := make([]float64, len(subtypeCols))
		for j, c := range subtypeCols {
			w, err := parsePercent(cell(row, c))
			if err != nil {
				return fmt.Errorf("sheet %q row %d column %q: %w", tbl.name, i+2, subtypes[j], err)
			}
			weights[j] = w
		}
		s := t.scheme(name)
		s.Occupancy[occ] = Distribution{Categories: subtypes, Weights: weights}
	}
	return nil
}

// loadBuildingMapping depends on loadCharTypes having run: each row's
// BLDGCHARID is resolved to its characteristic type and value there.
func (t *Tables) loadBuildingMapping(tbl *table) error {
	schemeCol, err := tbl.col("huBldgSchemeName")
	if err != nil {
		return err
	}
	sbtCol, err := tbl.col("sbtName")
	if err != nil {
		return err
	}
	idCol, err := tbl.col("BLDGCHARID")
	if err != nil {
		return err
	}
	pctCol, err := tbl.col("PercentDist")
	if err != nil {
		return err
	}

	type charRef struct {
		charType string
		value    string
	}
	byID := make(map[int]charRef)
	for _, ct := range t.CharTypes {
		for _, v := range ct.Values {
			byID[v.ID] = charRef{charType: ct.Name, value: v.Value}
		}
	}

	type entry struct {
		id     int
		weight float64
	}
	grouped := make(map[[3]string][]entry)
	var order [][3]string
	for i, row := range tbl.rows {
		name := strings.TrimSpace(cell(row, schemeCol))
		sbt := strings.TrimSpace(cell(row, sbtCol))
		if name == "" || sbt == "" {
			continue
		}
		id, err := parseInt(cell(row, idCol))
		if err != nil {
			return fmt.Errorf("sheet %q row %d: BLDGCHARID: %w", tbl.name, i+2, err)
		}
		ref, ok := byID[id]
		if !ok {
			return fmt.Errorf("sheet %q row %d: BLDGCHARID %d is not in the characteristic list", tbl.name, i+2, id)
		}
		w, err := parsePercent(cell(row, pctCol))
		if err != nil {
			return fmt.Errorf("sheet %q row %d: PercentDist: %w", tbl.name, i+2, err)
		}
		key := [3]string{name, sbt, ref.charType}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], entry{id: id, weight: w})
	}

	for _, key := range order {
		entries := grouped[key]
		slices.SortStableFunc(entries, func(a, b entry) int { return a.id - b.id })
		d := Distribution{
			Categories: make([]string, len(entries)),
			Weights:    make([]float64, len(entries)),
		}
		for i, e := range entries {
			d.Categories[i] = byID[e.id].value
			d.Weights[i] = e.weight
		}
		s := t.scheme(key[0])
		chars, ok := s.Subtypes[key[1]]
		if !ok {
			chars = make(map[string]Distribution)
			s.Subtypes[key[1]] = chars
		}
		chars[key[2]] = d
	}
	return nil
}

func (t *Tables) loadWindTypes(tbl *table) error {
	idCol, err := tbl.col("wbID")
	if err != nil {
		return err
	}
	sbtCol, err := tbl.col("sbtName")
	if err != nil {
		return err
	}
	descCol, err := tbl.col("charDescription")
	if err != nil {
		return err
	}
	for _, row := range tbl.rows {
		id := normalizeID(cell(row, idCol))
		sbt := strings.TrimSpace(cell(row, sbtCol))
		if id == "" || sbt == "" {
			continue
		}
		t.WindTypes[sbt] = append(t.WindTypes[sbt], newWindType(id, sbt, cell(row, descCol)))
	}
	return nil
}

func (t *Tables) loadTerrain(tbl *table) error {
	idCol, err := tbl.col("TerrainID")
	if err != nil {
		return err
	}
	maxCol, err := tbl.col("MaxRoughness")
	if err != nil {
		return err
	}
	for i, row := range tbl.rows {
		if strings.TrimSpace(cell(row, idCol)) == "" {
			continue
		}
		id, err := parseInt(cell(row, idCol))
		if err != nil {
			return fmt.Errorf("sheet %q row %d: TerrainID: %w", tbl.name, i+2, err)
		}
		maxZ, err := parseFloat(cell(row, maxCol))
		if err != nil {
			return fmt.Errorf("sheet %q row %d: MaxRoughness: %w", tbl.name, i+2, err)
		}
		t.Terrain = append(t.Terrain, TerrainBand{TerrainID: id, MaxRoughness: maxZ})
	}
	slices.SortFunc(t.Terrain, func(a, b TerrainBand) int { return a.TerrainID - b.TerrainID })
	return nil
}

func (t *Tables) scheme(name string) *Scheme {
	s, ok := t.schemes[name]
	if !ok {
		s = &Scheme{
			Name:      name,
			Occupancy: make(map[string]Distribution),
			Subtypes:  make(map[string]map[string]Distribution),
		}
		t.schemes[name] = s
	}
	return s
}

// table is one worksheet or CSV split into a header and data rows.
type table struct {
	name   string
	header []string
	index  map[string]int
	rows   [][]string
}

func newTable(name string, rows [][]string) (*table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", name)
	}
	tbl := &table{name: name, header: rows[0], index: make(map[string]int), rows: rows[1:]}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := tbl.index[key]; !dup {
			tbl.index[key] = i
		}
	}
	return tbl, nil
}

func (t *table) col(name string) (int, error) {
	i, ok := t.index[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("sheet %q: missing column %q", t.name, name)
	}
	return i, nil
}

// cell tolerates short rows; spreadsheets drop trailing empty cells.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseInt(s string) (int, error) {
	s = normalizeID(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// parsePercent converts a 0-100 percentage cell to a fraction. Blank cells
// are zero.
func parsePercent(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	v, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative percentage")
	}
	return v / 100, nil
}
