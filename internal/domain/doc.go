// Package domain models buildings, their Hazus wind characterization, and the
// per-scenario losses derived from them.
//
// # Data Sources
//
// Building records come from the USACE National Structure Inventory (NSI).
// Each row carries a foundation ID (fd_id), a census block FIPS code
// (cbfips), an occupancy code (occtype), a general construction type
// (bldgtype), a location, a surface roughness value and replacement values
// for the structure and its contents.
//
// Reference tables come from the FEMA Hazus hurricane model: the
// Mapping.xlsx workbook (county schemes, occupancy-to-subtype percentages,
// subtype-to-characteristic percentages, characteristic lists and the wind
// building type enumeration) and huDamLossFunc.csv (damage and loss curves).
//
// # Hazus Conventions
//
// County FIPS:
//
//	The first five digits of the census block FIPS code, e.g.
//	"220710017001000" -> "22071" (Orleans Parish, LA).
//
// Occupancy codes:
//
//	NSI codes may carry a suffix after a dash ("RES1-1SNB"). Only the part
//	before the dash ("RES1") is used for Hazus lookups.
//
// Construction types:
//
//	W wood, M masonry, C concrete, S steel, H manufactured housing. Each
//	selects a contiguous group of subtype columns in the occupancy mapping.
//
// Terrain classes (surface roughness z0, metres):
//
//	1 open          z0 <= 0.03
//	2 light suburban 0.03 < z0 <= 0.15
//	3 suburban      0.15 < z0 <= 0.35
//	4 light urban   0.35 < z0 <= 0.70
//	5 urban         z0 > 0.70
//
// Damage curves:
//
//	Loss ratio as a function of 3-second gust wind speed in mph, tabulated
//	per (wbID, terrain, descriptor). Descriptor 5 is building loss and 6 is
//	contents loss.
//
// # Reproducibility
//
// Every stochastic draw made for a building comes from a random stream
// seeded by SHA-256(seed | building ID). Results do not depend on iteration
// order or on the number of workers. See [NewStream].
package domain
