package spatial_test

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/spatial"
	"github.com/couchcryptid/storm-data-windloss/internal/windfield"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid() []windfield.Point {
	var pts []windfield.Point
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			lon := -91 + float64(i)*0.1
			lat := 29 + float64(j)*0.1
			pts = append(pts, windfield.Point{Longitude: lon, Latitude: lat, WindSpeed: float64(i*20 + j), GustSpeed: float64(i*20+j) * 1.28})
		}
	}
	return pts
}

func TestNewIndex_Empty(t *testing.T) {
	_, err := spatial.NewIndex(nil)
	require.Error(t, err)
}

func TestNearest_MatchesBruteForce(t *testing.T) {
	pts := grid()
	ix, err := spatial.NewIndex(pts)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(3, 4))
	for n := 0; n < 200; n++ {
		lon := -91.2 + rng.Float64()*2.4
		lat := 28.8 + rng.Float64()*2.4
		got, _ := ix.Nearest(lon, lat)

		best, bestD := pts[0], math.Inf(1)
		cosLat := math.Cos((29 + 0.95) * math.Pi / 180)
		for _, p := range pts {
			dx := (p.Longitude - lon) * cosLat
			dy := p.Latitude - lat
			if d := dx*dx + dy*dy; d < bestD {
				best, bestD = p, d
			}
		}
		require.Equal(t, best, got, "query (%g, %g)", lon, lat)
	}
}

func TestNearest_DistanceInMetres(t *testing.T) {
	ix, err := spatial.NewIndex([]windfield.Point{{Longitude: -90, Latitude: 30, GustSpeed: 100}})
	require.NoError(t, err)

	// 0.01 degree of latitude is about 1112 m.
	_, d := ix.Nearest(-90, 30.01)
	assert.InDelta(t, 1112, d, 2)

	_, d = ix.Nearest(-90, 30)
	assert.Zero(t, d)
}

func TestJoin(t *testing.T) {
	ix, err := spatial.NewIndex(grid())
	require.NoError(t, err)

	buildings := []domain.Building{
		{ID: "on-grid", Longitude: -90.5, Latitude: 29.5},
		{ID: "no-coords", Longitude: math.NaN(), Latitude: math.NaN()},
		{ID: "far", Longitude: -80, Latitude: 29.5},
	}
	got, stats := spatial.Join(ix, buildings, 1000)

	require.Len(t, got, 2)
	assert.Equal(t, "on-grid", got[0].BuildingID)
	assert.InDelta(t, 5*20+5, got[0].WindSpeed, 1e-9)
	assert.InDelta(t, 0, got[0].DistanceM, 1e-6)
	assert.Equal(t, 1, stats.NoLocation)
	assert.Equal(t, 2, stats.Joined)
	assert.Equal(t, 1, stats.BeyondLimit)
	assert.Greater(t, stats.MaxDistanceM, 900000.0)
}

func TestAssignments_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joined_data", "ida_2021", "ida_2021.csv")
	want := []domain.WindAssignment{
		{BuildingID: "1", WindSpeed: 80.5, GustSpeed: 103.04, DistanceM: 512.25},
		{BuildingID: "2", WindSpeed: 0, GustSpeed: 0, DistanceM: 0},
	}
	require.NoError(t, spatial.WriteAssignments(path, want))

	got, err := spatial.ReadAssignments(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assignments round trip (-want +got):\n%s", diff)
	}

	gust := spatial.GustByBuilding(got)
	assert.Equal(t, map[string]float64{"1": 103.04, "2": 0}, gust)
}
