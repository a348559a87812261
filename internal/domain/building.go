package domain

import "strings"

// ConstructionType is the NSI general building type code.
type ConstructionType string

const (
	ConstructionWood     ConstructionType = "W"
	ConstructionMasonry  ConstructionType = "M"
	ConstructionConcrete ConstructionType = "C"
	ConstructionSteel    ConstructionType = "S"
	ConstructionMobile   ConstructionType = "H"
)

// Building is a single inventory record before characterization.
type Building struct {
	ID               string
	BlockFIPS        string
	CountyFIPS       string
	OccupancyType    string
	ConstructionType ConstructionType
	Longitude        float64
	Latitude         float64
	SurfaceRoughness float64
	StructureValue   float64
	ContentsValue    float64
}

// HazusOccupancy returns the occupancy code used for Hazus lookups, with any
// NSI suffix ("RES1-1SNB" -> "RES1") removed.
func (b Building) HazusOccupancy() string {
	occ := strings.TrimSpace(b.OccupancyType)
	if i := strings.Index(occ, "-"); i >= 0 {
		occ = occ[:i]
	}
	return occ
}

// CountyFromBlock derives the five-digit county FIPS code from a census block
// FIPS code. Codes shorter than five digits are returned unchanged.
func CountyFromBlock(blockFIPS string) string {
	blockFIPS = strings.TrimSpace(blockFIPS)
	if len(blockFIPS) <= 5 {
		return blockFIPS
	}
	return blockFIPS[:5]
}

// Characteristic is one assigned structural attribute, e.g. Shutters=shtys.
type Characteristic struct {
	Type  string
	Value string
}

// CharacterizedBuilding is a Building plus the Hazus attributes assigned by
// the characterization pass. It is never mutated after creation.
type CharacterizedBuilding struct {
	Building

	Scheme          string
	Subtype         string
	Characteristics []Characteristic // chain order
	WBID            string
	TerrainID       int
}

// Characteristic returns the assigned value for a characteristic type.
func (c CharacterizedBuilding) Characteristic(charType string) (string, bool) {
	for _, ch := range c.Characteristics {
		if ch.Type == charType {
			return ch.Value, true
		}
	}
	return "", false
}
