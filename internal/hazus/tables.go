// Package hazus loads the Hazus hurricane reference data (the Mapping.xlsx
// workbook and the huDamLossFunc damage functions) into typed in-memory
// tables and exposes them through narrow lookups.
package hazus

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
)

// Distribution is a weighted-choice table over categories in declared order.
// Weights are fractions, not percentages.
type Distribution struct {
	Categories []string
	Weights    []float64
}

// Mass returns the total weight.
func (d Distribution) Mass() float64 {
	var sum float64
	for _, w := range d.Weights {
		sum += w
	}
	return sum
}

// Len returns the number of categories.
func (d Distribution) Len() int { return len(d.Categories) }

// Slice returns categories [start, end). An end of 0 or past the last column
// means "to the end".
func (d Distribution) Slice(start, end int) Distribution {
	n := len(d.Categories)
	if end <= 0 || end > n {
		end = n
	}
	if start >= end {
		return Distribution{}
	}
	return Distribution{Categories: d.Categories[start:end], Weights: d.Weights[start:end]}
}

// Normalized returns a copy whose weights sum to 1. A distribution without
// positive mass is returned unchanged.
func (d Distribution) Normalized() Distribution {
	mass := d.Mass()
	if mass <= 0 {
		return d
	}
	w := make([]float64, len(d.Weights))
	for i, v := range d.Weights {
		w[i] = v / mass
	}
	return Distribution{Categories: d.Categories, Weights: w}
}

// Scheme is one Hazus building mapping scheme: the occupancy-to-subtype
// percentages plus, per subtype, the characteristic percentages.
type Scheme struct {
	Name      string
	Occupancy map[string]Distribution           // occupancy -> subtype distribution
	Subtypes  map[string]map[string]Distribution // subtype -> characteristic type -> values
}

// CharType is one structural characteristic and its possible values, in the
// declared order of the characteristic list.
type CharType struct {
	Name   string
	Values []CharValue
}

// CharValue is one possible value of a characteristic type.
type CharValue struct {
	ID    int
	Value string
}

// WindType is one entry of the wind building type enumeration.
type WindType struct {
	WBID        string
	Subtype     string
	Description string
	tokens      map[string]struct{}
}

// Mentions reports whether the type's characteristic description carries value.
func (w WindType) Mentions(value string) bool {
	_, ok := w.tokens[strings.ToLower(value)]
	return ok
}

func newWindType(wbID, subtype, description string) WindType {
	return WindType{
		WBID:        wbID,
		Subtype:     subtype,
		Description: description,
		tokens:      tokenize(description),
	}
}

func tokenize(description string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		switch r {
		case ',', ';', '|', '+', '/', '(', ')', ' ', '\t':
			return true
		}
		return false
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

// TerrainBand is the inclusive roughness upper bound of one terrain class.
type TerrainBand struct {
	TerrainID    int
	MaxRoughness float64
}

// Tables holds every reference table needed to characterize a building.
type Tables struct {
	countySchemes map[string]string
	schemes       map[string]*Scheme
	defaultScheme string

	CharTypes []CharType
	WindTypes map[string][]WindType // subtype -> types in declared order
	Terrain   []TerrainBand         // empty when the workbook has no terrain sheet
}

// SetDefaultScheme configures the scheme used for counties without an entry.
func (t *Tables) SetDefaultScheme(name string) { t.defaultScheme = name }

// SchemeFor returns the mapping scheme for a county, falling back to the
// default scheme. A county with neither is a configuration error for the
// whole run.
func (t *Tables) SchemeFor(countyFIPS string) (*Scheme, error) {
	name, ok := t.countySchemes[normalizeFIPS(countyFIPS)]
	if !ok {
		name = t.defaultScheme
	}
	if name == "" {
		return nil, domain.ConfigurationError("resolve scheme",
			fmt.Errorf("county %s: %w", countyFIPS, domain.ErrSchemeNotFound))
	}
	s, ok := t.schemes[name]
	if !ok {
		return nil, domain.ConfigurationError("resolve scheme",
			fmt.Errorf("county %s: scheme %q has no mapping rows: %w", countyFIPS, name, domain.ErrSchemeNotFound))
	}
	return s, nil
}

// Schemes returns the number of loaded schemes.
func (t *Tables) Schemes() int { return len(t.schemes) }

// Counties returns the number of county-to-scheme assignments.
func (t *Tables) Counties() int { return len(t.countySchemes) }

// normalizeFIPS zero-pads numeric county codes to five digits, since the
// workbook stores them as numbers ("1001" for Autauga County, AL).
func normalizeFIPS(s string) string {
	s = normalizeID(s)
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && len(s) < 5 {
		return fmt.Sprintf("%05d", n)
	}
	return s
}

// normalizeID turns spreadsheet renderings of integers ("12.0", " 12") into
// their plain form so IDs compare equal across the workbook and CSV files.
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !strings.ContainsAny(s, "eE") {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// NewTables returns empty tables to be filled with the Add methods. The
// workbook loader is the usual source; this is for fixtures and generators.
func NewTables(defaultScheme string) *Tables {
	return &Tables{
		countySchemes: make(map[string]string),
		schemes:       make(map[string]*Scheme),
		defaultScheme: defaultScheme,
		WindTypes:     make(map[string][]WindType),
	}
}

// AddCountyScheme assigns a scheme to a county.
func (t *Tables) AddCountyScheme(countyFIPS, scheme string) {
	t.countySchemes[normalizeFIPS(countyFIPS)] = scheme
}

// AddOccupancy sets the subtype distribution of an occupancy within a scheme.
func (t *Tables) AddOccupancy(scheme, occupancy string, d Distribution) {
	t.scheme(scheme).Occupancy[occupancy] = d
}

// AddCharType appends a characteristic type to the declared chain order.
func (t *Tables) AddCharType(name string, values ...string) {
	ct := CharType{Name: name}
	next := 1
	for _, existing := range t.CharTypes {
		next += len(existing.Values)
	}
	for i, v := range values {
		ct.Values = append(ct.Values, CharValue{ID: next + i, Value: v})
	}
	t.CharTypes = append(t.CharTypes, ct)
}

// AddCharDistribution sets the value distribution of a characteristic type
// for a subtype within a scheme.
func (t *Tables) AddCharDistribution(scheme, subtype, charType string, d Distribution) {
	s := t.scheme(scheme)
	chars, ok := s.Subtypes[subtype]
	if !ok {
		chars = make(map[string]Distribution)
		s.Subtypes[subtype] = chars
	}
	chars[charType] = d
}

// AddWindType appends a wind building type for a subtype.
func (t *Tables) AddWindType(wbID, subtype, description string) {
	t.WindTypes[subtype] = append(t.WindTypes[subtype], newWindType(normalizeID(wbID), subtype, description))
}
