package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Contents loss modes.
const (
	ContentsCurve    = "curve"    // separate contents damage curve (descriptor 6)
	ContentsFraction = "fraction" // fixed fraction of the structural loss ratio
)

// Methodology holds the Hazus methodology parameters. Defaults reproduce the
// published Hurricane Ida configuration; a YAML file may override any field.
type Methodology struct {
	Scenarios     []string `yaml:"scenarios"`
	DefaultScheme string   `yaml:"default_scheme"`

	// Wind field conversion.
	GustFactor          float64 `yaml:"gust_factor"`
	MSToMPH             float64 `yaml:"ms_to_mph"`
	LongitudeAdjustment float64 `yaml:"longitude_adjustment"`

	// ProbabilityTolerance is the allowed deviation of a distribution's total
	// mass from 1 before table validation flags it.
	ProbabilityTolerance float64 `yaml:"probability_tolerance"`

	// TerrainUpperBounds are the inclusive roughness upper bounds of terrain
	// classes 1..4; anything above the last bound is class 5.
	TerrainUpperBounds []float64 `yaml:"terrain_upper_bounds"`

	Contents          ContentsPolicy            `yaml:"contents"`
	DamageDescriptors DamageDescriptors         `yaml:"damage_descriptors"`
	SubtypeGroups     []SubtypeGroup            `yaml:"subtype_groups"`
	Conditions        []CharacteristicCondition `yaml:"conditions"`
	Sheets            SheetNames                `yaml:"sheets"`
	Files             FileNames                 `yaml:"files"`
	Inventory         InventoryColumns          `yaml:"inventory_columns"`
}

// ContentsPolicy selects how contents losses are derived.
type ContentsPolicy struct {
	Mode     string  `yaml:"mode"`
	Fraction float64 `yaml:"fraction"`
}

// DamageDescriptors are the huDamLossFunc DamLossDescID values to read.
type DamageDescriptors struct {
	Building int `yaml:"building"`
	Contents int `yaml:"contents"`
}

// SubtypeGroup maps a construction type to a half-open range of subtype
// columns in the occupancy mapping sheet. End 0 means "to the last column".
type SubtypeGroup struct {
	ConstructionType string `yaml:"construction_type"`
	Start            int    `yaml:"start"`
	End              int    `yaml:"end"`
}

// CharacteristicCondition makes a characteristic type applicable only when
// an earlier characteristic has (or lacks) a given value.
type CharacteristicCondition struct {
	CharType  string `yaml:"char_type"`
	DependsOn string `yaml:"depends_on"`
	Equals    string `yaml:"equals,omitempty"`
	NotEquals string `yaml:"not_equals,omitempty"`
}

// SheetNames are the worksheet names inside the Hazus mapping workbook.
type SheetNames struct {
	CountySchemes    string `yaml:"county_schemes"`
	OccupancyMapping string `yaml:"occupancy_mapping"`
	BuildingMapping  string `yaml:"building_mapping"`
	Characteristics  string `yaml:"characteristics"`
	WindTypes        string `yaml:"wind_types"`
	Terrain          string `yaml:"terrain"`
}

// FileNames are the reference files inside the Hazus directory.
type FileNames struct {
	Mapping         string `yaml:"mapping"`
	DamageFunctions string `yaml:"damage_functions"`
}

// InventoryColumns names the NSI columns read from the building inventory.
type InventoryColumns struct {
	ID               string `yaml:"id"`
	BlockFIPS        string `yaml:"block_fips"`
	Occupancy        string `yaml:"occupancy"`
	ConstructionType string `yaml:"construction_type"`
	Longitude        string `yaml:"longitude"`
	Latitude         string `yaml:"latitude"`
	SurfaceRoughness string `yaml:"surface_roughness"`
	StructureValue   string `yaml:"structure_value"`
	ContentsValue    string `yaml:"contents_value"`
}

// DefaultMethodology returns the built-in Hazus parameters.
func DefaultMethodology() *Methodology {
	return &Methodology{
		Scenarios:            []string{"ida_1971", "ida_2021", "ida_2071"},
		GustFactor:           1.28, // ASCE 7-16
		MSToMPH:              2.23694,
		LongitudeAdjustment:  -360,
		ProbabilityTolerance: 0.01,
		TerrainUpperBounds:   []float64{0.03, 0.15, 0.35, 0.7},
		Contents:             ContentsPolicy{Mode: ContentsCurve, Fraction: 0.5},
		DamageDescriptors:    DamageDescriptors{Building: 5, Contents: 6},
		SubtypeGroups: []SubtypeGroup{
			{ConstructionType: "W", Start: 0, End: 5},
			{ConstructionType: "M", Start: 5, End: 19},
			{ConstructionType: "C", Start: 19, End: 25},
			{ConstructionType: "S", Start: 25, End: 34},
			{ConstructionType: "H", Start: 34, End: 0},
		},
		Conditions: []CharacteristicCondition{
			{CharType: "Garage, Houses with Shutters", DependsOn: "Shutters", Equals: "shtys"},
			{CharType: "Garage, Houses w/out Shutters", DependsOn: "Shutters", NotEquals: "shtys"},
		},
		Sheets: SheetNames{
			CountySchemes:    "huMappingSchemesByCountyFips",
			OccupancyMapping: "huGbsOccMapping",
			BuildingMapping:  "huBldgMapping",
			Characteristics:  "huListofBldgChar",
			WindTypes:        "huListOfWindBldgTypes",
			Terrain:          "huTerrain",
		},
		Files: FileNames{
			Mapping:         "Mapping.xlsx",
			DamageFunctions: "huDamLossFunc.csv",
		},
		Inventory: InventoryColumns{
			ID:               "fd_id",
			BlockFIPS:        "cbfips",
			Occupancy:        "occtype",
			ConstructionType: "bldgtype",
			Longitude:        "x",
			Latitude:         "y",
			SurfaceRoughness: "nsi_val.SURFACEROU",
			StructureValue:   "val_struct",
			ContentsValue:    "val_cont",
		},
	}
}

// LoadMethodology reads a YAML methodology file over the defaults. An empty
// path returns the defaults unchanged.
func LoadMethodology(path string) (*Methodology, error) {
	m := DefaultMethodology()
	if path == "" {
		return m, m.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading methodology file: %w", err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing methodology YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("methodology %s: %w", path, err)
	}
	return m, nil
}

// Validate checks the parameters for internal consistency.
func (m *Methodology) Validate() error {
	var errs []error
	if m.GustFactor <= 0 {
		errs = append(errs, errors.New("gust_factor must be positive"))
	}
	if m.MSToMPH <= 0 {
		errs = append(errs, errors.New("ms_to_mph must be positive"))
	}
	if m.ProbabilityTolerance < 0 || m.ProbabilityTolerance >= 1 {
		errs = append(errs, errors.New("probability_tolerance must be in [0, 1)"))
	}
	if len(m.TerrainUpperBounds) != 4 {
		errs = append(errs, fmt.Errorf("terrain_upper_bounds needs 4 values, got %d", len(m.TerrainUpperBounds)))
	} else if !slices.IsSorted(m.TerrainUpperBounds) {
		errs = append(errs, errors.New("terrain_upper_bounds must be ascending"))
	}
	switch m.Contents.Mode {
	case ContentsCurve:
	case ContentsFraction:
		if m.Contents.Fraction < 0 || m.Contents.Fraction > 1 {
			errs = append(errs, errors.New("contents.fraction must be in [0, 1]"))
		}
	default:
		errs = append(errs, fmt.Errorf("contents.mode %q must be %q or %q", m.Contents.Mode, ContentsCurve, ContentsFraction))
	}
	for _, g := range m.SubtypeGroups {
		if g.Start < 0 || (g.End != 0 && g.End <= g.Start) {
			errs = append(errs, fmt.Errorf("subtype group %s has invalid range [%d, %d)", g.ConstructionType, g.Start, g.End))
		}
	}
	for _, c := range m.Conditions {
		if c.CharType == "" || c.DependsOn == "" {
			errs = append(errs, errors.New("conditions need char_type and depends_on"))
		}
		if (c.Equals == "") == (c.NotEquals == "") {
			errs = append(errs, fmt.Errorf("condition on %q needs exactly one of equals or not_equals", c.CharType))
		}
	}
	if m.Sheets.CountySchemes == "" || m.Sheets.OccupancyMapping == "" || m.Sheets.BuildingMapping == "" ||
		m.Sheets.Characteristics == "" || m.Sheets.WindTypes == "" {
		errs = append(errs, errors.New("all required sheet names must be set"))
	}
	return errors.Join(errs...)
}

// SubtypeGroup returns the column group for a construction type.
func (m *Methodology) SubtypeGroup(constructionType string) (SubtypeGroup, bool) {
	for _, g := range m.SubtypeGroups {
		if g.ConstructionType == constructionType {
			return g, true
		}
	}
	return SubtypeGroup{}, false
}
