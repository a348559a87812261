// Command genmock writes a small synthetic data set for the wind-loss
// pipeline: a Hazus mapping workbook, damage functions, an NSI-style building
// inventory and one raw wind swath per scenario. Output is deterministic for
// a given seed.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -buildings 5000
//
//	windloss run --wind-dir data/mock/wind --buildings data/mock/nsi.csv \
//	  --hazus-dir data/mock/hazus --output-dir out
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
)

var counties = []string{"22071", "22051", "22087", "22075"}

// Subtype columns of the occupancy mapping, in methodology group order.
var (
	woodSubtypes    = []string{"WSF1", "WSF2", "WMUH1", "WMUH2", "WMUH3"}
	masonrySubtypes = []string{"MSF1", "MSF2"}
)

var occupancies = []struct {
	code    string
	weights []float64 // one per subtype column
}{
	{"RES1", []float64{45, 25, 0, 0, 0, 20, 10}},
	{"RES3A", []float64{0, 0, 40, 30, 10, 10, 10}},
	{"COM1", []float64{0, 0, 20, 20, 20, 20, 20}},
}

var charTypes = []struct {
	name   string
	values []string
	dist   []float64
}{
	{"Roof Shape", []string{"rsgab", "rship"}, []float64{65, 35}},
	{"Shutters", []string{"shtys", "shtno"}, []float64{15, 85}},
	{"Garage, Houses with Shutters", []string{"gdsup", "gdno"}, []float64{60, 40}},
	{"Garage, Houses w/out Shutters", []string{"gdwk", "gdnone"}, []float64{50, 50}},
}

type scenario struct {
	name      string
	centerLon float64 // 0..360
	centerLat float64
	vmax      float64 // sustained m/s
}

var scenarios = []scenario{
	{"ida_1971", 269.75, 29.6, 48},
	{"ida_2021", 269.85, 29.7, 52},
	{"ida_2071", 269.9, 29.75, 57},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "output directory")
	n := flag.Int("buildings", 2000, "number of buildings")
	seed := flag.Uint64("seed", 121, "random seed")
	flag.Parse()

	if *outDir == "" || *n <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out-dir, -buildings")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	hazusDir := filepath.Join(*outDir, "hazus")
	if err := os.MkdirAll(hazusDir, 0o755); err != nil {
		return err
	}
	m := config.DefaultMethodology()

	windTypes := windBuildingTypes()
	if err := hazus.WriteWorkbook(filepath.Join(hazusDir, m.Files.Mapping), mappingSheets(windTypes)); err != nil {
		return fmt.Errorf("writing mapping workbook: %w", err)
	}
	log.Printf("wrote mapping workbook: %d wind building types", len(windTypes))

	curves, err := writeDamageFunctions(filepath.Join(hazusDir, m.Files.DamageFunctions), windTypes)
	if err != nil {
		return fmt.Errorf("writing damage functions: %w", err)
	}
	log.Printf("wrote damage functions: %d curves", curves)

	if err := writeInventory(filepath.Join(*outDir, "nsi.csv"), m.Inventory, *n, rng); err != nil {
		return fmt.Errorf("writing inventory: %w", err)
	}
	log.Printf("wrote inventory: %d buildings", *n)

	for _, sc := range scenarios {
		path := filepath.Join(*outDir, "wind", sc.name+".csv")
		points, err := writeSwath(path, sc)
		if err != nil {
			return fmt.Errorf("writing %s swath: %w", sc.name, err)
		}
		log.Printf("wrote %s swath: %d grid points", sc.name, points)
	}
	return nil
}

type windType struct {
	id, subtype, roof, shutters string
}

func windBuildingTypes() []windType {
	var out []windType
	for _, sbt := range append(append([]string{}, woodSubtypes...), masonrySubtypes...) {
		for _, roof := range charTypes[0].values {
			for _, sh := range charTypes[1].values {
				out = append(out, windType{
					id:       fmt.Sprintf("%s_%d", sbt, len(out)%4+1),
					subtype:  sbt,
					roof:     roof,
					shutters: sh,
				})
			}
		}
	}
	return out
}

func mappingSheets(windTypes []windType) []hazus.Sheet {
	subtypes := append(append([]string{}, woodSubtypes...), masonrySubtypes...)

	schemes := [][]any{{"CountyFIPS", "huBldgSchemeName"}}
	for _, c := range counties {
		schemes = append(schemes, []any{c, "LASCH"})
	}

	occHeader := []any{"huOccMapSchemeName", "Occupancy"}
	for _, s := range subtypes {
		occHeader = append(occHeader, s)
	}
	occ := [][]any{occHeader}
	for _, o := range occupancies {
		row := []any{"LASCH", o.code}
		for _, w := range o.weights {
			row = append(row, w)
		}
		occ = append(occ, row)
	}

	chars := [][]any{{"BldgCharID", "CharType", "BldgChar"}}
	bldg := [][]any{{"huBldgSchemeName", "sbtName", "BLDGCHARID", "PercentDist"}}
	id := 0
	for _, ct := range charTypes {
		for i, v := range ct.values {
			id++
			chars = append(chars, []any{id, ct.name, v})
			for _, s := range subtypes {
				bldg = append(bldg, []any{"LASCH", s, id, ct.dist[i]})
			}
		}
	}

	wt := [][]any{{"wbID", "sbtName", "charDescription"}}
	for _, w := range windTypes {
		wt = append(wt, []any{w.id, w.subtype, w.roof + ", " + w.shutters})
	}

	return []hazus.Sheet{
		{Name: "huMappingSchemesByCountyFips", Rows: schemes},
		{Name: "huGbsOccMapping", Rows: occ},
		{Name: "huListofBldgChar", Rows: chars},
		{Name: "huBldgMapping", Rows: bldg},
		{Name: "huListOfWindBldgTypes", Rows: wt},
	}
}

// writeDamageFunctions writes logistic loss curves in the wide WS<speed>
// layout. Rougher terrain and hip roofs shift the curve to higher speeds;
// shutters lower the contents curve.
func writeDamageFunctions(path string, windTypes []windType) (int, error) {
	speeds := make([]int, 0, 41)
	for v := 50; v <= 250; v += 5 {
		speeds = append(speeds, v)
	}

	header := []string{"wbID", "TERRAINID", "DamLossDescID"}
	for _, v := range speeds {
		header = append(header, "WS"+strconv.Itoa(v))
	}

	rows := [][]string{header}
	for _, w := range windTypes {
		mid := 145.0
		if w.roof == "rship" {
			mid += 10
		}
		if w.subtype[0] == 'M' {
			mid += 15
		}
		for terrain := 1; terrain <= 5; terrain++ {
			center := mid + float64(terrain-1)*6
			contentsScale := 1.0
			if w.shutters == "shtys" {
				contentsScale = 0.7
			}
			for _, desc := range []struct {
				id    int
				scale float64
			}{{5, 1}, {6, contentsScale}} {
				row := []string{w.id, strconv.Itoa(terrain), strconv.Itoa(desc.id)}
				base := logistic(float64(speeds[0]), center)
				for _, v := range speeds {
					r := (logistic(float64(v), center) - base) / (1 - base) * desc.scale
					row = append(row, strconv.FormatFloat(r, 'f', 5, 64))
				}
				rows = append(rows, row)
			}
		}
	}
	return len(rows) - 1, writeCSV(path, rows)
}

func logistic(v, center float64) float64 {
	return 1 / (1 + math.Exp(-(v-center)/14))
}

func writeInventory(path string, cols config.InventoryColumns, n int, rng *rand.Rand) error {
	rows := [][]string{{
		cols.ID, cols.BlockFIPS, cols.Occupancy, cols.ConstructionType,
		cols.Longitude, cols.Latitude, cols.SurfaceRoughness, cols.StructureValue, cols.ContentsValue,
	}}
	occWeights := []float64{0.8, 0.12, 0.08}
	for i := range n {
		county := counties[rng.IntN(len(counties))]
		block := fmt.Sprintf("%s%06d%04d", county, rng.IntN(1_000_000), rng.IntN(10_000))

		occ := occupancies[pick(rng, occWeights)].code
		bldgType := "W"
		if rng.Float64() < 0.25 {
			bldgType = "M"
		}
		structure := 80_000 + rng.Float64()*420_000
		if occ == "COM1" {
			structure *= 3
		}
		contents := structure * 0.5
		if occ == "COM1" {
			contents = structure
		}

		rows = append(rows, []string{
			strconv.Itoa(500_000 + i),
			block,
			occ,
			bldgType,
			strconv.FormatFloat(-90.6+rng.Float64()*1.1, 'f', 6, 64),
			strconv.FormatFloat(29.4+rng.Float64()*0.8, 'f', 6, 64),
			strconv.FormatFloat(rng.Float64()*0.9, 'f', 3, 64),
			strconv.FormatFloat(structure, 'f', 2, 64),
			strconv.FormatFloat(contents, 'f', 2, 64),
		})
	}
	return writeCSV(path, rows)
}

func pick(rng *rand.Rand, weights []float64) int {
	u := rng.Float64()
	for i, w := range weights {
		if u < w {
			return i
		}
		u -= w
	}
	return len(weights) - 1
}

// writeSwath writes a Rankine-like wind field on a 0.05 degree grid in the
// raw export layout (longitude 0..360, sustained m/s).
func writeSwath(path string, sc scenario) (int, error) {
	const (
		step     = 0.05
		radiusKm = 35.0
	)
	rows := [][]string{{"lat_2d", "lon_2d", "swath_wind"}}
	for lat := 29.2; lat <= 30.5; lat += step {
		for lon := 269.2; lon <= 270.6; lon += step {
			dx := (lon - sc.centerLon) * 111.32 * math.Cos(lat*math.Pi/180)
			dy := (lat - sc.centerLat) * 110.57
			r := math.Hypot(dx, dy)
			v := sc.vmax * r / radiusKm
			if r > radiusKm {
				v = sc.vmax * math.Pow(radiusKm/r, 0.6)
			}
			rows = append(rows, []string{
				strconv.FormatFloat(lat, 'f', 3, 64),
				strconv.FormatFloat(lon, 'f', 3, 64),
				strconv.FormatFloat(v, 'f', 3, 64),
			})
		}
	}
	return len(rows) - 1, writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
