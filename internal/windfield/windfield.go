// Package windfield converts a gridded wind swath export into the processed
// wind table: longitudes in -180..180 and sustained and gust speeds in mph.
package windfield

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
)

// Point is one processed wind grid point.
type Point struct {
	Longitude float64
	Latitude  float64
	WindSpeed float64 // sustained, mph
	GustSpeed float64 // 3-second gust, mph
}

// Column aliases accepted in raw swath exports, after lowercasing.
var (
	lonAliases  = []string{"lon_2d", "lon", "longitude"}
	latAliases  = []string{"lat_2d", "lat", "latitude"}
	windAliases = []string{"swath_wind", "wind", "wind_speed"}
)

var processedColumns = []string{"Longitude", "Latitude", "Wind_Speed", "Gust_Wind_Speed"}

// Converter applies the methodology's unit conversions.
type Converter struct {
	GustFactor          float64
	MSToMPH             float64
	LongitudeAdjustment float64
}

// NewConverter reads the conversion factors from m.
func NewConverter(m *config.Methodology) Converter {
	return Converter{
		GustFactor:          m.GustFactor,
		MSToMPH:             m.MSToMPH,
		LongitudeAdjustment: m.LongitudeAdjustment,
	}
}

// Convert turns one raw grid cell (sustained speed in m/s) into a Point.
// Longitudes above 180 are shifted by the longitude adjustment; longitudes
// already in -180..180 are kept.
func (c Converter) Convert(lon, lat, sustainedMS float64) Point {
	if lon > 180 {
		lon += c.LongitudeAdjustment
	}
	mph := sustainedMS * c.MSToMPH
	return Point{
		Longitude: lon,
		Latitude:  lat,
		WindSpeed: mph,
		GustSpeed: mph * c.GustFactor,
	}
}

// Stats describes one conversion.
type Stats struct {
	Points  int
	Skipped int // rows with a missing or non-finite value
	MaxGust float64
}

// ReadRaw parses a raw swath export and converts every row. Rows whose
// coordinates or speed are blank or non-finite (masked cells in the source
// grid) are skipped and counted.
func ReadRaw(r io.Reader, conv Converter) ([]Point, Stats, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}
	lonCol, err := findColumn(header, lonAliases)
	if err != nil {
		return nil, Stats{}, err
	}
	latCol, err := findColumn(header, latAliases)
	if err != nil {
		return nil, Stats{}, err
	}
	windCol, err := findColumn(header, windAliases)
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		points []Point
		stats  Stats
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Stats{}, fmt.Errorf("line %d: %w", line, err)
		}
		lon, ok1 := parseFinite(rec[lonCol])
		lat, ok2 := parseFinite(rec[latCol])
		ms, ok3 := parseFinite(rec[windCol])
		if !ok1 || !ok2 || !ok3 {
			stats.Skipped++
			continue
		}
		p := conv.Convert(lon, lat, ms)
		points = append(points, p)
		stats.MaxGust = math.Max(stats.MaxGust, p.GustSpeed)
	}
	stats.Points = len(points)
	if len(points) == 0 {
		return nil, stats, errors.New("no usable grid points")
	}
	return points, stats, nil
}

// Process converts the raw export at in and writes the processed table to out.
func Process(in, out string, conv Converter) (Stats, error) {
	f, err := os.Open(in)
	if err != nil {
		return Stats{}, fmt.Errorf("open wind swath: %w", err)
	}
	defer f.Close()

	points, stats, err := ReadRaw(f, conv)
	if err != nil {
		return Stats{}, fmt.Errorf("wind swath %s: %w", in, err)
	}
	if err := WriteProcessed(out, points); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// WriteProcessed writes points with the processed wind table header.
func WriteProcessed(path string, points []Point) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create wind output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create processed wind: %w", err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(processedColumns); err != nil {
		f.Close()
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{fmtFloat(p.Longitude), fmtFloat(p.Latitude), fmtFloat(p.WindSpeed), fmtFloat(p.GustSpeed)}); err != nil {
			f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write processed wind %s: %w", path, err)
	}
	return f.Close()
}

// ReadProcessed loads a table written by WriteProcessed.
func ReadProcessed(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open processed wind: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("processed wind %s: read header: %w", path, err)
	}
	cols := make([]int, len(processedColumns))
	for i, name := range processedColumns {
		c, err := findColumn(header, []string{strings.ToLower(name)})
		if err != nil {
			return nil, fmt.Errorf("processed wind %s: %w", path, err)
		}
		cols[i] = c
	}

	var points []Point
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("processed wind %s line %d: %w", path, line, err)
		}
		var vals [4]float64
		for i, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("processed wind %s line %d: %s: %w", path, line, processedColumns[i], err)
			}
			vals[i] = v
		}
		points = append(points, Point{Longitude: vals[0], Latitude: vals[1], WindSpeed: vals[2], GustSpeed: vals[3]})
	}
	return points, nil
}

func findColumn(header []string, aliases []string) (int, error) {
	for _, alias := range aliases {
		for i, h := range header {
			if strings.ToLower(strings.TrimSpace(h)) == alias {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("missing column (one of %s)", strings.Join(aliases, ", "))
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
