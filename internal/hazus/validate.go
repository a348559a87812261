package hazus

import (
	"fmt"
	"slices"
	"strconv"
)

// Severity grades a reference-table issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one defect found in the reference tables.
type Issue struct {
	Severity Severity
	Table    string
	Key      string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", i.Severity, i.Table, i.Key, i.Message)
}

// Report lists every issue found by Validate, in deterministic order.
type Report struct {
	Issues []Issue
}

// Errors returns the number of error-severity issues.
func (r Report) Errors() int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Report) add(sev Severity, table, key, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Table: table, Key: key, Message: fmt.Sprintf(format, args...)})
}

// Validate inspects the loaded tables without sampling anything. Probability
// mass short of 1 beyond tolerance is reported as a warning because sampling
// lets the last positive-weight category absorb the remainder; a
// distribution with no positive weight, or a subtype with no wind building
// types, is an error. When damage is non-nil every wind building type is
// also checked for structure curves on all terrain classes.
func Validate(t *Tables, damage *DamageTable, tolerance float64) Report {
	var r Report

	names := make([]string, 0, len(t.schemes))
	for name := range t.schemes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		s := t.schemes[name]
		for _, occ := range sortedKeys(s.Occupancy) {
			checkMass(&r, "occupancy mapping", name+"/"+occ, s.Occupancy[occ], tolerance)
		}
		for _, sbt := range sortedKeys(s.Subtypes) {
			chars := s.Subtypes[sbt]
			for _, ct := range sortedKeys(chars) {
				checkMass(&r, "building mapping", name+"/"+sbt+"/"+ct, chars[ct], tolerance)
			}
		}
	}

	for _, sbt := range t.sampledSubtypes() {
		if len(t.WindTypes[sbt]) == 0 {
			r.add(SeverityError, "wind building types", sbt, "subtype can be sampled but has no wind building type")
		}
	}

	for _, name := range names {
		if _, ok := t.countySchemesUsing(name); !ok && name != t.defaultScheme {
			r.add(SeverityWarning, "county schemes", name, "scheme is not assigned to any county")
		}
	}

	if damage != nil {
		terrains := t.terrainIDs()
		for _, sbt := range sortedKeys(t.WindTypes) {
			for _, wt := range t.WindTypes[sbt] {
				for _, terrain := range terrains {
					if _, err := damage.CurveFor(wt.WBID, terrain); err != nil {
						r.add(SeverityError, "damage functions", wt.WBID+"/"+strconv.Itoa(terrain), "no structure damage curve")
					}
				}
			}
		}
	}

	return r
}

func checkMass(r *Report, table, key string, d Distribution, tolerance float64) {
	mass := d.Mass()
	switch {
	case mass <= 0:
		r.add(SeverityError, table, key, "distribution has no positive weight")
	case mass < 1-tolerance:
		r.add(SeverityWarning, table, key,
			"probabilities sum to %.4f; the last positive category absorbs the remaining %.4f", mass, 1-mass)
	case mass > 1+tolerance:
		r.add(SeverityWarning, table, key,
			"probabilities sum to %.4f; categories past cumulative mass 1 can never be drawn", mass)
	}
}

// sampledSubtypes returns every subtype with positive weight in some
// occupancy distribution, sorted.
func (t *Tables) sampledSubtypes() []string {
	seen := make(map[string]struct{})
	for _, s := range t.schemes {
		for _, d := range s.Occupancy {
			for i, c := range d.Categories {
				if d.Weights[i] > 0 {
					seen[c] = struct{}{}
				}
			}
		}
	}
	return sortedKeys(seen)
}

func (t *Tables) countySchemesUsing(name string) (string, bool) {
	for county, s := range t.countySchemes {
		if s == name {
			return county, true
		}
	}
	return "", false
}

func (t *Tables) terrainIDs() []int {
	if len(t.Terrain) == 0 {
		return []int{1, 2, 3, 4, 5}
	}
	ids := make([]int, len(t.Terrain))
	for i, b := range t.Terrain {
		ids[i] = b.TerrainID
	}
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
